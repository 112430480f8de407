package models

import "time"

// EmployeeStatus captures the employment lifecycle.
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeReleased EmployeeStatus = "released"
	EmployeeRetired  EmployeeStatus = "retired"
)

// Gender values stored for employees and family members.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Employee file fields that accept uploaded documents.
const (
	FieldProfilePicture = "profile_picture"
	FieldNIDFile        = "nid_file_path"
	FieldBirthFile      = "birth_file_path"
)

// EmployeeFileFields lists the document columns on the employee row.
var EmployeeFileFields = []string{FieldProfilePicture, FieldNIDFile, FieldBirthFile}

// IsEmployeeFileField reports whether field is one of EmployeeFileFields.
func IsEmployeeFileField(field string) bool {
	for _, f := range EmployeeFileFields {
		if f == field {
			return true
		}
	}
	return false
}

// PersonalInfoFields lists the employee columns a profile change may rewrite.
var PersonalInfoFields = []string{
	"first_name", "last_name", "name_bn", "nid_number", "phone",
	"gender", "dob", "religion", "blood_group", "marital_status",
	"place_of_birth", "height", "passport", "birth_reg",
	"cadre_type", "batch_no",
}

// IsPersonalInfoField reports whether field is allow-listed for personal info changes.
func IsPersonalInfoField(field string) bool {
	for _, f := range PersonalInfoFields {
		if f == field {
			return true
		}
	}
	return false
}

// Employee is the aggregate root for HR records.
type Employee struct {
	ID              int64          `db:"id" json:"id"`
	DesignationID   int64          `db:"designation_id" json:"designation_id"`
	CurrentOfficeID int64          `db:"current_office_id" json:"current_office_id"`
	FirstName       string         `db:"first_name" json:"first_name"`
	LastName        string         `db:"last_name" json:"last_name"`
	NameBn          *string        `db:"name_bn" json:"name_bn,omitempty"`
	NIDNumber       string         `db:"nid_number" json:"nid_number"`
	Phone           *string        `db:"phone" json:"phone,omitempty"`
	DOB             *string        `db:"dob" json:"dob,omitempty"`
	Gender          *string        `db:"gender" json:"gender,omitempty"`
	Religion        *string        `db:"religion" json:"religion,omitempty"`
	BloodGroup      *string        `db:"blood_group" json:"blood_group,omitempty"`
	MaritalStatus   *string        `db:"marital_status" json:"marital_status,omitempty"`
	PlaceOfBirth    *string        `db:"place_of_birth" json:"place_of_birth,omitempty"`
	Height          *string        `db:"height" json:"height,omitempty"`
	Passport        *string        `db:"passport" json:"passport,omitempty"`
	BirthReg        *string        `db:"birth_reg" json:"birth_reg,omitempty"`
	CadreType       *string        `db:"cadre_type" json:"cadre_type,omitempty"`
	BatchNo         *string        `db:"batch_no" json:"batch_no,omitempty"`
	ProfilePicture  *string        `db:"profile_picture" json:"profile_picture,omitempty"`
	NIDFilePath     *string        `db:"nid_file_path" json:"nid_file_path,omitempty"`
	BirthFilePath   *string        `db:"birth_file_path" json:"birth_file_path,omitempty"`
	IsVerified      bool           `db:"is_verified" json:"is_verified"`
	Status          EmployeeStatus `db:"status" json:"status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time     `db:"deleted_at" json:"-"`
}

// FullName joins the employee's first and last names.
func (e *Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// MaxActiveSpouses returns the active marriage cap implied by the employee's gender.
func (e *Employee) MaxActiveSpouses() int {
	if e.Gender != nil && *e.Gender == GenderMale {
		return 4
	}
	return 1
}

// SpouseGender returns the gender recorded for a spouse of this employee.
func (e *Employee) SpouseGender() *string {
	if e.Gender == nil || *e.Gender == "" {
		return nil
	}
	g := GenderMale
	if *e.Gender == GenderMale {
		g = GenderFemale
	}
	return &g
}

// FileField returns the stored handle for one of EmployeeFileFields.
func (e *Employee) FileField(field string) *string {
	switch field {
	case FieldProfilePicture:
		return e.ProfilePicture
	case FieldNIDFile:
		return e.NIDFilePath
	case FieldBirthFile:
		return e.BirthFilePath
	}
	return nil
}

// PersonalInfo returns the allow-listed personal fields as a flat map.
func (e *Employee) PersonalInfo() map[string]*string {
	first, last, nid := e.FirstName, e.LastName, e.NIDNumber
	return map[string]*string{
		"first_name":     &first,
		"last_name":      &last,
		"name_bn":        e.NameBn,
		"nid_number":     &nid,
		"phone":          e.Phone,
		"gender":         e.Gender,
		"dob":            e.DOB,
		"religion":       e.Religion,
		"blood_group":    e.BloodGroup,
		"marital_status": e.MaritalStatus,
		"place_of_birth": e.PlaceOfBirth,
		"height":         e.Height,
		"passport":       e.Passport,
		"birth_reg":      e.BirthReg,
		"cadre_type":     e.CadreType,
		"batch_no":       e.BatchNo,
	}
}

// FamilyRelation identifies the role of a family member.
type FamilyRelation string

const (
	RelationFather FamilyRelation = "father"
	RelationMother FamilyRelation = "mother"
	RelationSpouse FamilyRelation = "spouse"
	RelationChild  FamilyRelation = "child"
)

// FamilyMember belongs to exactly one employee.
type FamilyMember struct {
	ID                   int64          `db:"id" json:"id"`
	EmployeeID           int64          `db:"employee_id" json:"employee_id"`
	Relation             FamilyRelation `db:"relation" json:"relation"`
	Name                 string         `db:"name" json:"name"`
	NameBn               *string        `db:"name_bn" json:"name_bn,omitempty"`
	Gender               *string        `db:"gender" json:"gender,omitempty"`
	NID                  *string        `db:"nid" json:"nid,omitempty"`
	DOB                  *string        `db:"dob" json:"dob,omitempty"`
	Occupation           *string        `db:"occupation" json:"occupation,omitempty"`
	IsAlive              bool           `db:"is_alive" json:"is_alive"`
	IsActiveMarriage     *bool          `db:"is_active_marriage" json:"is_active_marriage,omitempty"`
	BirthCertificatePath *string        `db:"birth_certificate_path" json:"birth_certificate_path,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// AddressType distinguishes present and permanent addresses.
type AddressType string

const (
	AddressPresent   AddressType = "present"
	AddressPermanent AddressType = "permanent"
)

// Address is keyed by (employee, type).
type Address struct {
	ID          int64       `db:"id" json:"id"`
	EmployeeID  int64       `db:"employee_id" json:"employee_id"`
	Type        AddressType `db:"type" json:"type"`
	Division    *string     `db:"division" json:"division,omitempty"`
	District    *string     `db:"district" json:"district,omitempty"`
	Upazila     *string     `db:"upazila" json:"upazila,omitempty"`
	PostOffice  *string     `db:"post_office" json:"post_office,omitempty"`
	HouseNo     *string     `db:"house_no" json:"house_no,omitempty"`
	VillageRoad *string     `db:"village_road" json:"village_road,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Exam names accepted for academic records.
var AcademicExamNames = []string{
	"SSC / Dakhil",
	"HSC / Alim",
	"Bachelor (Honors)",
	"Masters",
	"Diploma",
}

// IsAcademicExamName reports whether name is an accepted exam.
func IsAcademicExamName(name string) bool {
	for _, n := range AcademicExamNames {
		if n == name {
			return true
		}
	}
	return false
}

// AcademicRecord is one completed examination.
type AcademicRecord struct {
	ID              int64     `db:"id" json:"id"`
	EmployeeID      int64     `db:"employee_id" json:"employee_id"`
	ExamName        string    `db:"exam_name" json:"exam_name"`
	Board           *string   `db:"board" json:"board,omitempty"`
	Institute       *string   `db:"institute" json:"institute,omitempty"`
	PassingYear     *string   `db:"passing_year" json:"passing_year,omitempty"`
	Result          *string   `db:"result" json:"result,omitempty"`
	CertificatePath *string   `db:"certificate_path" json:"certificate_path,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// EmployeeProfile bundles an employee with its owned sub-records.
type EmployeeProfile struct {
	Employee  *Employee         `json:"employee"`
	Family    []FamilyMember    `json:"family"`
	Addresses []Address         `json:"addresses"`
	Academics []AcademicRecord  `json:"academics"`
	Files     map[string]string `json:"file_urls,omitempty"`
}

// Member returns the first family member with relation, if any.
func (p *EmployeeProfile) Member(relation FamilyRelation) *FamilyMember {
	for i := range p.Family {
		if p.Family[i].Relation == relation {
			return &p.Family[i]
		}
	}
	return nil
}

// Members returns every family member with relation.
func (p *EmployeeProfile) Members(relation FamilyRelation) []FamilyMember {
	out := make([]FamilyMember, 0)
	for _, m := range p.Family {
		if m.Relation == relation {
			out = append(out, m)
		}
	}
	return out
}

// ActiveSpouseCount counts spouses whose marriage is active.
func (p *EmployeeProfile) ActiveSpouseCount() int {
	count := 0
	for _, m := range p.Members(RelationSpouse) {
		if m.IsActiveMarriage == nil || *m.IsActiveMarriage {
			count++
		}
	}
	return count
}

// Address returns the address of the given type, if stored.
func (p *EmployeeProfile) Address(t AddressType) *Address {
	for i := range p.Addresses {
		if p.Addresses[i].Type == t {
			return &p.Addresses[i]
		}
	}
	return nil
}

// EmployeeView is the profile returned to viewers, with spouse capacity.
type EmployeeView struct {
	*EmployeeProfile
	MaxSpouses        int  `json:"max_spouses"`
	ActiveSpouseCount int  `json:"active_spouse_count"`
	CanAddSpouse      bool `json:"can_add_spouse"`
}
