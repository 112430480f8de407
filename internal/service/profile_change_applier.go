package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/railway-hrm-api/internal/models"
	"github.com/noah-isme/railway-hrm-api/internal/repository"
	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
)

type employeeStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Employee, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Employee, error)
	List(ctx context.Context, filter repository.EmployeeFilter) ([]models.Employee, int, error)
	LoadProfile(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.EmployeeProfile, error)
	UpdatePersonalInfo(ctx context.Context, exec sqlx.ExtContext, id int64, fields map[string]*string) error
	UpdateFileField(ctx context.Context, exec sqlx.ExtContext, id int64, field string, handle *string) error
	UpsertParent(ctx context.Context, exec sqlx.ExtContext, member *models.FamilyMember) error
	ReplaceFamilyMembers(ctx context.Context, exec sqlx.ExtContext, employeeID int64, relation models.FamilyRelation, members []models.FamilyMember) ([]int64, error)
	FindFamilyMember(ctx context.Context, exec sqlx.ExtContext, employeeID, id int64) (*models.FamilyMember, error)
	SetBirthCertificate(ctx context.Context, exec sqlx.ExtContext, id int64, handle *string) error
	UpsertAddress(ctx context.Context, exec sqlx.ExtContext, address *models.Address) error
	ReplaceAcademics(ctx context.Context, exec sqlx.ExtContext, employeeID int64, records []models.AcademicRecord) ([]int64, error)
	FindAcademic(ctx context.Context, exec sqlx.ExtContext, employeeID, id int64) (*models.AcademicRecord, error)
	SetAcademicCertificate(ctx context.Context, exec sqlx.ExtContext, id int64, handle *string) error
}

type transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context, uow *repository.UnitOfWork) error) error
}

// ApplyResult reports what an applied proposal produced.
type ApplyResult struct {
	AcademicIDs []int64
	Promoted    []string
	// Unapplied lists staged handles that were not attributed to any record.
	Unapplied []string
}

// ProfileChangeApplier writes a proposal onto the employee aggregate inside a
// unit of work. Steps run in a fixed order because document promotion needs
// the ids of academic records created earlier in the same unit.
type ProfileChangeApplier struct {
	employees employeeStore
	documents *PendingDocumentStore
	logger    *zap.Logger
}

// NewProfileChangeApplier constructs the applier.
func NewProfileChangeApplier(employees employeeStore, documents *PendingDocumentStore, logger *zap.Logger) *ProfileChangeApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileChangeApplier{employees: employees, documents: documents, logger: logger}
}

var validGenders = map[string]struct{}{
	models.GenderMale:   {},
	models.GenderFemale: {},
	models.GenderOther:  {},
}

func validationError(message, field string) *appErrors.Error {
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, message), "field", field)
}

// ValidateChanges checks a proposal against the employee it targets. The
// spouse cap uses the gender the employee will have after personal_info is applied.
func ValidateChanges(changes *models.ProposedChanges, employee *models.Employee) error {
	if changes == nil {
		return nil
	}
	effective := *employee
	if g, ok := changes.PersonalInfo.Allowed()["gender"]; ok {
		if g != nil {
			if _, valid := validGenders[strings.ToLower(*g)]; !valid {
				return validationError("gender must be male, female or other", "personal_info.gender")
			}
			lower := strings.ToLower(*g)
			g = &lower
		}
		effective.Gender = g
	}
	if dob := changes.PersonalInfo.Allowed()["dob"]; !validDate(dob) {
		return validationError("dob must be a date in YYYY-MM-DD format", "personal_info.dob")
	}
	if f := changes.Family; f != nil {
		if f.Father.HasName() && !validDate(models.BlankToNil(f.Father.DOB)) {
			return validationError("dob must be a date in YYYY-MM-DD format", "family.father.dob")
		}
		if f.Mother.HasName() && !validDate(models.BlankToNil(f.Mother.DOB)) {
			return validationError("dob must be a date in YYYY-MM-DD format", "family.mother.dob")
		}
		for i := range f.Spouses {
			if f.Spouses[i].HasName() && !validDate(models.BlankToNil(f.Spouses[i].DOB)) {
				return validationError("dob must be a date in YYYY-MM-DD format", fmt.Sprintf("family.spouses.%d.dob", i))
			}
		}
		for i := range f.Children {
			if f.Children[i].HasName() && !validDate(models.BlankToNil(f.Children[i].DOB)) {
				return validationError("dob must be a date in YYYY-MM-DD format", fmt.Sprintf("family.children.%d.dob", i))
			}
		}
		if f.Spouses != nil {
			active := 0
			for i := range f.Spouses {
				if f.Spouses[i].HasName() && f.Spouses[i].ActiveMarriage() {
					active++
				}
			}
			if limit := effective.MaxActiveSpouses(); active > limit {
				err := validationError(fmt.Sprintf("an employee may have at most %d active spouse(s)", limit), "family.spouses")
				err = appErrors.WithDetails(err, "max_spouses", limit)
				return appErrors.WithDetails(err, "active_spouses", active)
			}
		}
		for i := range f.Children {
			child := f.Children[i]
			if !child.HasName() {
				continue
			}
			if child.Gender == nil {
				return validationError(fmt.Sprintf("gender is required for child %q", strings.TrimSpace(child.Name)), fmt.Sprintf("family.children.%d.gender", i))
			}
			if _, ok := validGenders[strings.ToLower(strings.TrimSpace(*child.Gender))]; !ok {
				return validationError(fmt.Sprintf("gender of child %q must be male, female or other", strings.TrimSpace(child.Name)), fmt.Sprintf("family.children.%d.gender", i))
			}
		}
	}
	for i, a := range changes.Academics {
		name := strings.TrimSpace(a.ExamName)
		if name == "" {
			continue
		}
		if !models.IsAcademicExamName(name) {
			return validationError(fmt.Sprintf("unknown exam name %q", name), fmt.Sprintf("academics.%d.exam_name", i))
		}
	}
	return nil
}

func validDate(v *string) bool {
	if v == nil {
		return true
	}
	_, err := time.Parse("2006-01-02", strings.TrimSpace(*v))
	return err == nil
}

// ValidateFileReferences rejects certificate handles in academics and
// children that are not already attached to one of the employee's own
// records. New files only enter a record through a staged document.
func ValidateFileReferences(changes *models.ProposedChanges, profile *models.EmployeeProfile) error {
	if changes == nil {
		return nil
	}
	certificates := make(map[string]struct{})
	for _, a := range profile.Academics {
		if a.CertificatePath != nil && *a.CertificatePath != "" {
			certificates[*a.CertificatePath] = struct{}{}
		}
	}
	for i, a := range changes.Academics {
		if strings.TrimSpace(a.ExamName) == "" {
			continue
		}
		if handle := models.BlankToNil(a.CertificatePath); handle != nil {
			if _, ok := certificates[*handle]; !ok {
				return validationError("certificate_path must reference an existing certificate of this employee", fmt.Sprintf("academics.%d.certificate_path", i))
			}
		}
	}
	if changes.Family == nil {
		return nil
	}
	births := make(map[string]struct{})
	for _, m := range profile.Members(models.RelationChild) {
		if m.BirthCertificatePath != nil && *m.BirthCertificatePath != "" {
			births[*m.BirthCertificatePath] = struct{}{}
		}
	}
	for i, c := range changes.Family.Children {
		if !c.HasName() {
			continue
		}
		if handle := models.BlankToNil(c.BirthCertificatePath); handle != nil {
			if _, ok := births[*handle]; !ok {
				return validationError("birth_certificate_path must reference an existing certificate of this employee", fmt.Sprintf("family.children.%d.birth_certificate_path", i))
			}
		}
	}
	return nil
}

// Apply writes changes for employeeID through uow.
func (a *ProfileChangeApplier) Apply(ctx context.Context, uow *repository.UnitOfWork, employeeID int64, changes *models.ProposedChanges) (*ApplyResult, error) {
	exec := uow.Exec()
	if _, err := a.employees.LockByID(ctx, exec, employeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock employee")
	}
	profile, err := a.employees.LoadProfile(ctx, exec, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee profile")
	}
	if err := ValidateChanges(changes, profile.Employee); err != nil {
		return nil, err
	}
	if err := ValidateFileReferences(changes, profile); err != nil {
		return nil, err
	}
	employee := profile.Employee
	result := &ApplyResult{}

	if personal := changes.PersonalInfo.Allowed(); len(personal) > 0 {
		if g, ok := personal["gender"]; ok && g != nil {
			lower := strings.ToLower(*g)
			personal["gender"] = &lower
		}
		if err := a.employees.UpdatePersonalInfo(ctx, exec, employeeID, personal); err != nil {
			return nil, a.internal(err, "failed to update personal info")
		}
		if g, ok := personal["gender"]; ok {
			employee.Gender = g
		}
	}

	if changes.Family != nil {
		if err := a.applyFamily(ctx, uow, profile, changes.Family); err != nil {
			return nil, err
		}
	}

	if changes.Addresses != nil {
		slots := []struct {
			kind    models.AddressType
			payload *models.AddressPayload
		}{
			{models.AddressPresent, changes.Addresses.Present},
			{models.AddressPermanent, changes.Addresses.Permanent},
		}
		for _, slot := range slots {
			if !slot.payload.HasData() {
				continue
			}
			address := addressFromPayload(employeeID, slot.kind, slot.payload)
			if err := a.employees.UpsertAddress(ctx, exec, address); err != nil {
				return nil, a.internal(err, "failed to update address")
			}
		}
	}

	if changes.Academics != nil {
		ids, err := a.applyAcademics(ctx, uow, profile, changes.Academics)
		if err != nil {
			return nil, err
		}
		result.AcademicIDs = ids
	}

	docs, strays := changes.NormalizedDocuments()
	result.Unapplied = append(result.Unapplied, strays...)
	for _, doc := range docs {
		final, applied, err := a.applyDocument(ctx, uow, employee, doc, result.AcademicIDs)
		if err != nil {
			return nil, err
		}
		if applied {
			result.Promoted = append(result.Promoted, final)
		} else if doc.Path != "" {
			result.Unapplied = append(result.Unapplied, doc.Path)
		}
	}
	return result, nil
}

func (a *ProfileChangeApplier) applyFamily(ctx context.Context, uow *repository.UnitOfWork, profile *models.EmployeeProfile, family *models.FamilyChanges) error {
	exec := uow.Exec()
	employee := profile.Employee
	parents := []struct {
		relation models.FamilyRelation
		gender   string
		payload  *models.PersonPayload
	}{
		{models.RelationFather, models.GenderMale, family.Father},
		{models.RelationMother, models.GenderFemale, family.Mother},
	}
	for _, p := range parents {
		if !p.payload.HasName() {
			continue
		}
		gender := p.gender
		member := memberFromPayload(employee.ID, p.relation, &gender, p.payload)
		if err := a.employees.UpsertParent(ctx, exec, &member); err != nil {
			return a.internal(err, "failed to update "+string(p.relation))
		}
	}

	if family.Spouses != nil {
		spouses := make([]models.FamilyMember, 0, len(family.Spouses))
		for i := range family.Spouses {
			if !family.Spouses[i].HasName() {
				continue
			}
			spouses = append(spouses, memberFromPayload(employee.ID, models.RelationSpouse, employee.SpouseGender(), &family.Spouses[i]))
		}
		if _, err := a.employees.ReplaceFamilyMembers(ctx, exec, employee.ID, models.RelationSpouse, spouses); err != nil {
			return a.internal(err, "failed to replace spouses")
		}
	}

	if family.Children != nil {
		children := make([]models.FamilyMember, 0, len(family.Children))
		kept := make(map[string]struct{})
		for i := range family.Children {
			payload := &family.Children[i]
			if !payload.HasName() {
				continue
			}
			gender := strings.ToLower(strings.TrimSpace(*payload.Gender))
			child := memberFromPayload(employee.ID, models.RelationChild, &gender, payload)
			if child.BirthCertificatePath != nil {
				kept[*child.BirthCertificatePath] = struct{}{}
			}
			children = append(children, child)
		}
		if _, err := a.employees.ReplaceFamilyMembers(ctx, exec, employee.ID, models.RelationChild, children); err != nil {
			return a.internal(err, "failed to replace children")
		}
		orphaned := make([]string, 0)
		for _, old := range profile.Members(models.RelationChild) {
			if old.BirthCertificatePath == nil || *old.BirthCertificatePath == "" {
				continue
			}
			if _, ok := kept[*old.BirthCertificatePath]; !ok {
				orphaned = append(orphaned, *old.BirthCertificatePath)
			}
		}
		a.documents.DeleteOnCommit(uow, orphaned)
	}
	return nil
}

func (a *ProfileChangeApplier) applyAcademics(ctx context.Context, uow *repository.UnitOfWork, profile *models.EmployeeProfile, payload []models.AcademicPayload) ([]int64, error) {
	records := make([]models.AcademicRecord, 0, len(payload))
	kept := make(map[string]struct{})
	for _, p := range payload {
		name := strings.TrimSpace(p.ExamName)
		if name == "" {
			continue
		}
		record := models.AcademicRecord{
			ExamName:        name,
			Board:           models.BlankToNil(p.Board),
			Institute:       models.BlankToNil(p.Institute),
			PassingYear:     models.BlankToNil(p.PassingYear),
			Result:          models.BlankToNil(p.Result),
			CertificatePath: models.BlankToNil(p.CertificatePath),
		}
		if record.CertificatePath != nil {
			kept[*record.CertificatePath] = struct{}{}
		}
		records = append(records, record)
	}
	ids, err := a.employees.ReplaceAcademics(ctx, uow.Exec(), profile.Employee.ID, records)
	if err != nil {
		return nil, a.internal(err, "failed to replace academic records")
	}
	orphaned := make([]string, 0)
	for _, old := range profile.Academics {
		if old.CertificatePath == nil || *old.CertificatePath == "" {
			continue
		}
		if _, ok := kept[*old.CertificatePath]; !ok {
			orphaned = append(orphaned, *old.CertificatePath)
		}
	}
	a.documents.DeleteOnCommit(uow, orphaned)
	return ids, nil
}

// applyDocument resolves the target of doc, promotes the staged file and
// records the new handle on the target. Unresolvable targets are skipped.
func (a *ProfileChangeApplier) applyDocument(ctx context.Context, uow *repository.UnitOfWork, employee *models.Employee, doc models.PendingDocument, academicIDs []int64) (string, bool, error) {
	exec := uow.Exec()
	log := a.logger.With(zap.Int64("employee_id", employee.ID), zap.String("path", doc.Path), zap.String("target", doc.Target.String()))

	switch doc.Target.Kind() {
	case models.TargetField:
		field := doc.Target.Field()
		final, ok, err := a.documents.Promote(ctx, uow, employee.ID, doc, employee.FileField(field))
		if err != nil || !ok {
			return "", false, err
		}
		if err := a.employees.UpdateFileField(ctx, exec, employee.ID, field, &final); err != nil {
			return "", false, a.internal(err, "failed to update employee document")
		}
		setFileField(employee, field, &final)
		return final, true, nil

	case models.TargetAcademicID, models.TargetAcademicIndex:
		academicID := doc.Target.ID()
		if doc.Target.Kind() == models.TargetAcademicIndex {
			idx := doc.Target.Index()
			if idx >= len(academicIDs) {
				log.Warn("academic index has no created record", zap.Int("created", len(academicIDs)))
				return "", false, nil
			}
			academicID = academicIDs[idx]
		}
		record, err := a.employees.FindAcademic(ctx, exec, employee.ID, academicID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Warn("academic record not found", zap.Int64("academic_id", academicID))
				return "", false, nil
			}
			return "", false, a.internal(err, "failed to load academic record")
		}
		final, ok, err := a.documents.Promote(ctx, uow, employee.ID, doc, record.CertificatePath)
		if err != nil || !ok {
			return "", false, err
		}
		if err := a.employees.SetAcademicCertificate(ctx, exec, record.ID, &final); err != nil {
			return "", false, a.internal(err, "failed to update academic certificate")
		}
		return final, true, nil

	case models.TargetFamilyMember:
		member, err := a.employees.FindFamilyMember(ctx, exec, employee.ID, doc.Target.ID())
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Warn("family member not found")
				return "", false, nil
			}
			return "", false, a.internal(err, "failed to load family member")
		}
		final, ok, err := a.documents.Promote(ctx, uow, employee.ID, doc, member.BirthCertificatePath)
		if err != nil || !ok {
			return "", false, err
		}
		if err := a.employees.SetBirthCertificate(ctx, exec, member.ID, &final); err != nil {
			return "", false, a.internal(err, "failed to update birth certificate")
		}
		return final, true, nil
	}
	log.Warn("skipping document without target")
	return "", false, nil
}

func (a *ProfileChangeApplier) internal(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func memberFromPayload(employeeID int64, relation models.FamilyRelation, gender *string, p *models.PersonPayload) models.FamilyMember {
	member := models.FamilyMember{
		EmployeeID: employeeID,
		Relation:   relation,
		Name:       strings.TrimSpace(p.Name),
		NameBn:     models.BlankToNil(p.NameBn),
		Gender:     gender,
		NID:        models.BlankToNil(p.NID),
		DOB:        models.BlankToNil(p.DOB),
		Occupation: models.BlankToNil(p.Occupation),
		IsAlive:    p.Alive(),
	}
	switch relation {
	case models.RelationSpouse:
		active := p.ActiveMarriage()
		member.IsActiveMarriage = &active
	case models.RelationChild:
		member.BirthCertificatePath = models.BlankToNil(p.BirthCertificatePath)
	}
	return member
}

func addressFromPayload(employeeID int64, kind models.AddressType, p *models.AddressPayload) *models.Address {
	return &models.Address{
		EmployeeID:  employeeID,
		Type:        kind,
		Division:    models.BlankToNil(p.Division),
		District:    models.BlankToNil(p.District),
		Upazila:     models.BlankToNil(p.Upazila),
		PostOffice:  models.BlankToNil(p.PostOffice),
		HouseNo:     models.BlankToNil(p.HouseNo),
		VillageRoad: models.BlankToNil(p.VillageRoad),
	}
}

func setFileField(e *models.Employee, field string, handle *string) {
	switch field {
	case models.FieldProfilePicture:
		e.ProfilePicture = handle
	case models.FieldNIDFile:
		e.NIDFilePath = handle
	case models.FieldBirthFile:
		e.BirthFilePath = handle
	}
}
