package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResourceKind describes how a stored document should be rendered.
type ResourceKind string

const (
	ResourceImage ResourceKind = "image"
	ResourceRaw   ResourceKind = "raw"
)

// ProposedChanges is the structured diff carried by a profile request.
// Nil slices mean "leave untouched"; empty slices mean "replace with nothing".
type ProposedChanges struct {
	PersonalInfo     PersonalInfoChanges   `json:"personal_info,omitempty"`
	Family           *FamilyChanges        `json:"family,omitempty"`
	Addresses        *AddressChanges       `json:"addresses,omitempty"`
	Academics        []AcademicPayload     `json:"academics"`
	PendingDocuments []PendingDocument     `json:"pending_documents,omitempty"`
	DocumentUpdate   *LegacyDocumentUpdate `json:"document_update,omitempty"`
	Files            map[string]string     `json:"files,omitempty"`
}

// IsEmpty reports whether the payload proposes nothing at all.
func (c *ProposedChanges) IsEmpty() bool {
	return len(c.PersonalInfo) == 0 && c.Family == nil && c.Addresses == nil &&
		c.Academics == nil && len(c.PendingDocuments) == 0 &&
		c.DocumentUpdate == nil && len(c.Files) == 0
}

// PersonalInfoChanges maps allow-listed employee columns to new values.
// Any JSON scalar is accepted and kept as text; null stays nil.
type PersonalInfoChanges map[string]*string

// UnmarshalJSON accepts strings, numbers, booleans and nulls.
func (p *PersonalInfoChanges) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("personal_info: %w", err)
	}
	out := make(PersonalInfoChanges, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			out[key] = nil
		case string:
			s := v
			out[key] = &s
		case float64:
			s := strconv.FormatFloat(v, 'f', -1, 64)
			out[key] = &s
		case bool:
			s := strconv.FormatBool(v)
			out[key] = &s
		default:
			return fmt.Errorf("personal_info.%s must be a scalar", key)
		}
	}
	*p = out
	return nil
}

// Allowed drops keys outside the allow-list and normalises blanks to nil.
func (p PersonalInfoChanges) Allowed() map[string]*string {
	out := make(map[string]*string)
	for key, value := range p {
		if !IsPersonalInfoField(key) {
			continue
		}
		out[key] = BlankToNil(value)
	}
	return out
}

// BlankToNil treats empty strings as absent.
func BlankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	s := *v
	return &s
}

// FamilyChanges carries the family sections of a proposal.
type FamilyChanges struct {
	Father   *PersonPayload  `json:"father,omitempty"`
	Mother   *PersonPayload  `json:"mother,omitempty"`
	Spouses  []PersonPayload `json:"spouses"`
	Children []PersonPayload `json:"children"`
}

// PersonPayload describes one family member.
type PersonPayload struct {
	ID                   *int64  `json:"id,omitempty"`
	Name                 string  `json:"name"`
	NameBn               *string `json:"name_bn,omitempty"`
	Gender               *string `json:"gender,omitempty"`
	NID                  *string `json:"nid,omitempty"`
	DOB                  *string `json:"dob,omitempty"`
	Occupation           *string `json:"occupation,omitempty"`
	IsAlive              *bool   `json:"is_alive,omitempty"`
	IsActiveMarriage     *bool   `json:"is_active_marriage,omitempty"`
	BirthCertificatePath *string `json:"birth_certificate_path,omitempty"`
}

// HasName reports whether the payload names a person.
func (p *PersonPayload) HasName() bool {
	return p != nil && strings.TrimSpace(p.Name) != ""
}

// ActiveMarriage defaults to true when unspecified.
func (p *PersonPayload) ActiveMarriage() bool {
	return p.IsActiveMarriage == nil || *p.IsActiveMarriage
}

// Alive defaults to true when unspecified.
func (p *PersonPayload) Alive() bool {
	return p.IsAlive == nil || *p.IsAlive
}

// AddressChanges carries the two address slots.
type AddressChanges struct {
	Present   *AddressPayload `json:"present,omitempty"`
	Permanent *AddressPayload `json:"permanent,omitempty"`
}

// AddressPayload is an address proposal.
type AddressPayload struct {
	Division    *string `json:"division,omitempty"`
	District    *string `json:"district,omitempty"`
	Upazila     *string `json:"upazila,omitempty"`
	PostOffice  *string `json:"post_office,omitempty"`
	HouseNo     *string `json:"house_no,omitempty"`
	VillageRoad *string `json:"village_road,omitempty"`
}

// HasData reports whether any of the identifying address parts is set.
func (a *AddressPayload) HasData() bool {
	if a == nil {
		return false
	}
	for _, v := range []*string{a.Division, a.District, a.VillageRoad, a.HouseNo} {
		if BlankToNil(v) != nil {
			return true
		}
	}
	return false
}

// AcademicPayload describes one academic record to create.
type AcademicPayload struct {
	ExamName        string  `json:"exam_name"`
	Board           *string `json:"board,omitempty"`
	Institute       *string `json:"institute,omitempty"`
	PassingYear     *string `json:"passing_year,omitempty"`
	Result          *string `json:"result,omitempty"`
	CertificatePath *string `json:"certificate_path,omitempty"`
}

// TargetKind discriminates DocumentTarget.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetField
	TargetAcademicID
	TargetAcademicIndex
	TargetFamilyMember
)

// DocumentTarget names the single entity slot a pending document will fill.
// Values are built through the constructors below; the zero value is invalid.
type DocumentTarget struct {
	kind  TargetKind
	field string
	id    int64
	index int
}

// ErrInvalidTarget is returned for malformed document targets.
var ErrInvalidTarget = errors.New("invalid document target")

// FieldTarget targets one of the employee file columns.
func FieldTarget(field string) (DocumentTarget, error) {
	if !IsEmployeeFileField(field) {
		return DocumentTarget{}, fmt.Errorf("%w: unknown field %q", ErrInvalidTarget, field)
	}
	return DocumentTarget{kind: TargetField, field: field}, nil
}

// AcademicIDTarget targets the certificate of an existing academic record.
func AcademicIDTarget(id int64) (DocumentTarget, error) {
	if id <= 0 {
		return DocumentTarget{}, fmt.Errorf("%w: academic_id must be positive", ErrInvalidTarget)
	}
	return DocumentTarget{kind: TargetAcademicID, id: id}, nil
}

// AcademicIndexTarget targets the certificate of the n-th academic record created by the same proposal.
func AcademicIndexTarget(index int) (DocumentTarget, error) {
	if index < 0 {
		return DocumentTarget{}, fmt.Errorf("%w: academic_index must not be negative", ErrInvalidTarget)
	}
	return DocumentTarget{kind: TargetAcademicIndex, index: index}, nil
}

// FamilyMemberTarget targets the birth certificate of a family member.
func FamilyMemberTarget(id int64) (DocumentTarget, error) {
	if id <= 0 {
		return DocumentTarget{}, fmt.Errorf("%w: family_member_id must be positive", ErrInvalidTarget)
	}
	return DocumentTarget{kind: TargetFamilyMember, id: id}, nil
}

// Kind returns the discriminator.
func (t DocumentTarget) Kind() TargetKind { return t.kind }

// Field returns the employee column for TargetField.
func (t DocumentTarget) Field() string { return t.field }

// ID returns the record id for TargetAcademicID and TargetFamilyMember.
func (t DocumentTarget) ID() int64 { return t.id }

// Index returns the position for TargetAcademicIndex.
func (t DocumentTarget) Index() int { return t.index }

// Valid reports whether the target was built by a constructor.
func (t DocumentTarget) Valid() bool { return t.kind != TargetNone }

// Folder returns the staging sub-folder used for this kind of target.
func (t DocumentTarget) Folder() string {
	switch t.kind {
	case TargetField:
		switch t.field {
		case FieldProfilePicture:
			return "photos"
		case FieldNIDFile:
			return "nid"
		case FieldBirthFile:
			return "birth"
		}
	case TargetAcademicID, TargetAcademicIndex:
		return "certificates"
	case TargetFamilyMember:
		return "children"
	}
	return ""
}

// PermanentNamespace returns the final folder for documents of this target.
func (t DocumentTarget) PermanentNamespace() string {
	switch t.kind {
	case TargetField:
		switch t.field {
		case FieldProfilePicture:
			return "photos"
		case FieldNIDFile:
			return "documents/nid"
		case FieldBirthFile:
			return "documents/birth"
		}
	case TargetAcademicID, TargetAcademicIndex:
		return "documents/certificates"
	case TargetFamilyMember:
		return "documents/children"
	}
	return ""
}

func (t DocumentTarget) String() string {
	switch t.kind {
	case TargetField:
		return "field:" + t.field
	case TargetAcademicID:
		return "academic_id:" + strconv.FormatInt(t.id, 10)
	case TargetAcademicIndex:
		return "academic_index:" + strconv.Itoa(t.index)
	case TargetFamilyMember:
		return "family_member_id:" + strconv.FormatInt(t.id, 10)
	}
	return "none"
}

// PendingDocument is a staged upload waiting to be attributed to Target.
type PendingDocument struct {
	Path             string
	ResourceKind     ResourceKind
	Target           DocumentTarget
	CurrentFilePath  *string
	AcademicExamName *string
	FamilyMemberName *string
	UploadedAt       *time.Time
}

type pendingDocumentJSON struct {
	Path             string       `json:"path"`
	ResourceKind     ResourceKind `json:"resource_kind,omitempty"`
	ResourceType     ResourceKind `json:"resource_type,omitempty"`
	Field            *string      `json:"field,omitempty"`
	AcademicID       *int64       `json:"academic_id,omitempty"`
	AcademicIndex    *int         `json:"academic_index,omitempty"`
	FamilyMemberID   *int64       `json:"family_member_id,omitempty"`
	CurrentFilePath  *string      `json:"current_file_path,omitempty"`
	AcademicExamName *string      `json:"academic_exam_name,omitempty"`
	FamilyMemberName *string      `json:"family_member_name,omitempty"`
	UploadedAt       *time.Time   `json:"uploaded_at,omitempty"`
}

// MarshalJSON flattens the target discriminator into the document object.
func (d PendingDocument) MarshalJSON() ([]byte, error) {
	out := pendingDocumentJSON{
		Path:             d.Path,
		ResourceKind:     d.ResourceKind,
		CurrentFilePath:  d.CurrentFilePath,
		AcademicExamName: d.AcademicExamName,
		FamilyMemberName: d.FamilyMemberName,
		UploadedAt:       d.UploadedAt,
	}
	switch d.Target.kind {
	case TargetField:
		f := d.Target.field
		out.Field = &f
	case TargetAcademicID:
		id := d.Target.id
		out.AcademicID = &id
	case TargetAcademicIndex:
		idx := d.Target.index
		out.AcademicIndex = &idx
	case TargetFamilyMember:
		id := d.Target.id
		out.FamilyMemberID = &id
	default:
		return nil, ErrInvalidTarget
	}
	return json.Marshal(out)
}

// UnmarshalJSON requires exactly one target discriminator.
func (d *PendingDocument) UnmarshalJSON(data []byte) error {
	var in pendingDocumentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	targets := make([]DocumentTarget, 0, 1)
	var errs []error
	add := func(t DocumentTarget, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		targets = append(targets, t)
	}
	if in.Field != nil && *in.Field != "" {
		add(FieldTarget(*in.Field))
	}
	if in.AcademicID != nil {
		add(AcademicIDTarget(*in.AcademicID))
	}
	if in.AcademicIndex != nil {
		add(AcademicIndexTarget(*in.AcademicIndex))
	}
	if in.FamilyMemberID != nil {
		add(FamilyMemberTarget(*in.FamilyMemberID))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if len(targets) != 1 {
		return fmt.Errorf("%w: pending document %q needs exactly one of field, academic_id, academic_index, family_member_id", ErrInvalidTarget, in.Path)
	}
	kind := in.ResourceKind
	if kind == "" {
		kind = in.ResourceType
	}
	*d = PendingDocument{
		Path:             in.Path,
		ResourceKind:     kind,
		Target:           targets[0],
		CurrentFilePath:  in.CurrentFilePath,
		AcademicExamName: in.AcademicExamName,
		FamilyMemberName: in.FamilyMemberName,
		UploadedAt:       in.UploadedAt,
	}
	return nil
}

// LegacyDocumentUpdate is the older single-document form.
type LegacyDocumentUpdate struct {
	FilePath       string       `json:"file_path"`
	ResourceType   ResourceKind `json:"resource_type,omitempty"`
	EmployeeField  *string      `json:"employee_field,omitempty"`
	AcademicID     *int64       `json:"academic_id,omitempty"`
	FamilyMemberID *int64       `json:"family_member_id,omitempty"`
}

// target picks the first usable discriminator in field, academic, family order.
func (u *LegacyDocumentUpdate) target() (DocumentTarget, bool) {
	if u.EmployeeField != nil && *u.EmployeeField != "" {
		t, err := FieldTarget(*u.EmployeeField)
		return t, err == nil
	}
	if u.AcademicID != nil && *u.AcademicID > 0 {
		t, err := AcademicIDTarget(*u.AcademicID)
		return t, err == nil
	}
	if u.FamilyMemberID != nil && *u.FamilyMemberID > 0 {
		t, err := FamilyMemberTarget(*u.FamilyMemberID)
		return t, err == nil
	}
	return DocumentTarget{}, false
}

// legacyFileKeys maps the bare `files` keys onto employee columns.
var legacyFileKeys = []struct {
	key   string
	field string
}{
	{"nid_file", FieldNIDFile},
	{"birth_file", FieldBirthFile},
	{"profile_picture", FieldProfilePicture},
}

// NormalizedDocuments folds the legacy document_update and files shapes into
// pending documents, after the explicit pending_documents entries. Staged
// handles that cannot be attributed to any target are returned as strays.
func (c *ProposedChanges) NormalizedDocuments() (docs []PendingDocument, strays []string) {
	docs = make([]PendingDocument, 0, len(c.PendingDocuments)+1+len(c.Files))
	docs = append(docs, c.PendingDocuments...)

	if u := c.DocumentUpdate; u != nil && u.FilePath != "" {
		if target, ok := u.target(); ok {
			docs = append(docs, PendingDocument{Path: u.FilePath, ResourceKind: u.ResourceType, Target: target})
		} else {
			strays = append(strays, u.FilePath)
		}
	}

	for _, lf := range legacyFileKeys {
		path, ok := c.Files[lf.key]
		if !ok || path == "" {
			continue
		}
		target, _ := FieldTarget(lf.field)
		docs = append(docs, PendingDocument{Path: path, Target: target})
	}
	for key, path := range c.Files {
		if !isLegacyFileKey(key) && path != "" {
			strays = append(strays, path)
		}
	}
	return docs, strays
}

// StagedPaths lists every staged handle referenced anywhere in the payload.
func (c *ProposedChanges) StagedPaths() []string {
	docs, strays := c.NormalizedDocuments()
	seen := make(map[string]struct{}, len(docs)+len(strays))
	paths := make([]string, 0, len(docs)+len(strays))
	for _, p := range append(docPaths(docs), strays...) {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths
}

func docPaths(docs []PendingDocument) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Path)
	}
	return out
}

func isLegacyFileKey(key string) bool {
	for _, lf := range legacyFileKeys {
		if lf.key == key {
			return true
		}
	}
	return false
}
