package clinical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// NotAvailable marks a field that does not appear in the consultation.
	NotAvailable = "N/A"
	// GeneralPractitioner is the referral used when no specialist is needed.
	GeneralPractitioner = "General Practitioner"
	// NoCandidateIllnesses replaces the candidate section when none apply.
	NoCandidateIllnesses = "No other candidate illnesses found"

	maxCandidates = 2
)

// Record is the structured clinical history returned to callers. The set of
// top-level sections is fixed; Normalize fills whatever the model left out.
type Record struct {
	PersonalData       PersonalData       `json:"personal_data"`
	ConsultationReason ConsultationReason `json:"consultation_reason"`
	CurrentIllness     Illness            `json:"current_illness"`
	CandidateIllnesses CandidateIllnesses `json:"candidate_illnesses"`
	MedicalHistory     MedicalHistory     `json:"medical_history"`
	VitalSigns         VitalSigns         `json:"vital_signs"`
	PhysicalExam       PhysicalExam       `json:"physical_exam"`
	DiagnosisTreatment DiagnosisTreatment `json:"diagnosis_treatment"`
	BMI                BMI                `json:"bmi"`
}

type PersonalData struct {
	FirstName        Value `json:"first_name"`
	LastName         Value `json:"last_name"`
	NationalID       Value `json:"national_id"`
	Sex              Value `json:"sex"`
	BloodType        Value `json:"blood_type"`
	BirthDate        Value `json:"birth_date"`
	Age              Value `json:"age"`
	Phone            Value `json:"phone"`
	Mobile           Value `json:"mobile"`
	ConsultationDate Value `json:"consultation_date"`
}

type ConsultationReason struct {
	Reason Value `json:"reason"`
	Place  Value `json:"place"`
}

// Illness is used both for the current illness and for each candidate.
type Illness struct {
	Description        Value `json:"description"`
	Treatment          Value `json:"treatment"`
	RequiredExams      Value `json:"required_exams"`
	SpecialistReferral Value `json:"specialist_referral"`
	Recommendations    Value `json:"recommendations"`
}

type MedicalHistory struct {
	Personal               Value `json:"personal"`
	Allergies              Value `json:"allergies"`
	Medications            Value `json:"medications"`
	CardiovascularProblems Value `json:"cardiovascular_problems"`
	Smoking                Value `json:"smoking"`
	Family                 Value `json:"family"`
	Surgeries              Value `json:"surgeries"`
	CoagulationProblems    Value `json:"coagulation_problems"`
	AnestheticProblems     Value `json:"anesthetic_problems"`
	Alcohol                Value `json:"alcohol"`
}

type VitalSigns struct {
	OxygenSaturation Value `json:"oxygen_saturation"`
	RespiratoryRate  Value `json:"respiratory_rate"`
	HeartRate        Value `json:"heart_rate"`
	BloodPressure    Value `json:"blood_pressure"`
	TemperatureC     Value `json:"temperature_c"`
}

type PhysicalExam struct {
	HeightCm    Value `json:"height_cm"`
	WeightKg    Value `json:"weight_kg"`
	HeadNeck    Value `json:"head_neck"`
	Thorax      Value `json:"thorax"`
	HeartLungs  Value `json:"heart_lungs"`
	Abdomen     Value `json:"abdomen"`
	Extremities Value `json:"extremities"`
}

type DiagnosisTreatment struct {
	PresumptiveDiagnosis Value `json:"presumptive_diagnosis"`
	Treatment            Value `json:"treatment"`
}

// BMI is derived from the physical exam by ApplyBMI. Value is nil when
// weight or height are unusable.
type BMI struct {
	Value          *float64 `json:"value"`
	Classification string   `json:"classification"`
}

// UnmarshalJSON discards whatever the model wrote; the section is always
// recomputed.
func (b *BMI) UnmarshalJSON([]byte) error {
	*b = BMI{}
	return nil
}

// DecodeRecord turns an extracted JSON object into a normalized Record.
// Unknown keys are dropped and missing leaves become "N/A".
func DecodeRecord(raw json.RawMessage) (*Record, error) {
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	r.Normalize()
	return &r, nil
}

// Normalize fills every empty leaf with "N/A" and every empty referral with
// GeneralPractitioner. It is safe to call more than once.
func (r *Record) Normalize() {
	fill(r.PersonalData.fields()...)
	fill(r.ConsultationReason.fields()...)
	r.CurrentIllness.normalize()
	for i := range r.CandidateIllnesses.Entries {
		r.CandidateIllnesses.Entries[i].normalize()
	}
	fill(r.MedicalHistory.fields()...)
	fill(r.VitalSigns.fields()...)
	fill(r.PhysicalExam.fields()...)
	fill(r.DiagnosisTreatment.fields()...)
	if r.BMI.Classification == "" {
		r.BMI.Classification = NotAvailable
	}
}

// Template is the empty record shown to the model as the required structure.
func Template() Record {
	return Record{
		CandidateIllnesses: CandidateIllnesses{Entries: make([]Illness, maxCandidates)},
	}
}

func fill(values ...*Value) {
	for _, v := range values {
		if v.Missing() {
			*v = NotAvailable
		}
	}
}

func (p *PersonalData) fields() []*Value {
	return []*Value{
		&p.FirstName, &p.LastName, &p.NationalID, &p.Sex, &p.BloodType,
		&p.BirthDate, &p.Age, &p.Phone, &p.Mobile, &p.ConsultationDate,
	}
}

func (c *ConsultationReason) fields() []*Value {
	return []*Value{&c.Reason, &c.Place}
}

func (ill *Illness) fields() []*Value {
	return []*Value{&ill.Description, &ill.Treatment, &ill.RequiredExams, &ill.SpecialistReferral, &ill.Recommendations}
}

func (ill *Illness) normalize() {
	if ill.SpecialistReferral.Missing() {
		ill.SpecialistReferral = GeneralPractitioner
	}
	fill(ill.fields()...)
}

func (ill *Illness) empty() bool {
	for _, v := range ill.fields() {
		if !v.Missing() {
			return false
		}
	}
	return true
}

func (m *MedicalHistory) fields() []*Value {
	return []*Value{
		&m.Personal, &m.Allergies, &m.Medications, &m.CardiovascularProblems, &m.Smoking,
		&m.Family, &m.Surgeries, &m.CoagulationProblems, &m.AnestheticProblems, &m.Alcohol,
	}
}

func (v *VitalSigns) fields() []*Value {
	return []*Value{&v.OxygenSaturation, &v.RespiratoryRate, &v.HeartRate, &v.BloodPressure, &v.TemperatureC}
}

func (p *PhysicalExam) fields() []*Value {
	return []*Value{&p.HeightCm, &p.WeightKg, &p.HeadNeck, &p.Thorax, &p.HeartLungs, &p.Abdomen, &p.Extremities}
}

func (d *DiagnosisTreatment) fields() []*Value {
	return []*Value{&d.PresumptiveDiagnosis, &d.Treatment}
}

// A section the model returned as a string or null decodes as empty and is
// then filled, instead of failing the whole record.

func (p *PersonalData) UnmarshalJSON(data []byte) error {
	type plain PersonalData
	return decodeObject(data, (*plain)(p))
}

func (c *ConsultationReason) UnmarshalJSON(data []byte) error {
	type plain ConsultationReason
	return decodeObject(data, (*plain)(c))
}

func (ill *Illness) UnmarshalJSON(data []byte) error {
	type plain Illness
	return decodeObject(data, (*plain)(ill))
}

func (m *MedicalHistory) UnmarshalJSON(data []byte) error {
	type plain MedicalHistory
	return decodeObject(data, (*plain)(m))
}

func (v *VitalSigns) UnmarshalJSON(data []byte) error {
	type plain VitalSigns
	return decodeObject(data, (*plain)(v))
}

func (p *PhysicalExam) UnmarshalJSON(data []byte) error {
	type plain PhysicalExam
	return decodeObject(data, (*plain)(p))
}

func (d *DiagnosisTreatment) UnmarshalJSON(data []byte) error {
	type plain DiagnosisTreatment
	return decodeObject(data, (*plain)(d))
}

func decodeObject(data []byte, dst any) error {
	if !isObject(data) {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}

// Value is a record leaf. Models do not always quote numbers, so any JSON
// value is accepted: strings are trimmed, numbers and booleans keep their
// literal text, arrays are joined with ", ", objects are kept as compact
// JSON and null is empty.
type Value string

// Missing reports whether the value is empty or already the N/A sentinel.
func (v Value) Missing() bool {
	s := strings.TrimSpace(string(v))
	return s == "" || strings.EqualFold(s, NotAvailable)
}

func (v Value) String() string { return string(v) }

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if strings.EqualFold(s, NotAvailable) {
			s = NotAvailable
		}
		*v = Value(s)
	case '[':
		var items []Value
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if !it.Missing() {
				parts = append(parts, string(it))
			}
		}
		*v = Value(strings.Join(parts, ", "))
	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*v = Value(buf.String())
	default:
		*v = Value(data)
	}
	return nil
}

// CandidateIllnesses holds at most two alternative diagnoses, most relevant
// first. With no entries it serializes as the NoCandidateIllnesses marker.
type CandidateIllnesses struct {
	Entries []Illness
}

func (c CandidateIllnesses) MarshalJSON() ([]byte, error) {
	if len(c.Entries) == 0 {
		return json.Marshal(NoCandidateIllnesses)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, `"candidate_illness_%d":`, i+1)
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a keyed object (entries kept in document order), a
// single illness object, an array, or the marker string.
func (c *CandidateIllnesses) UnmarshalJSON(data []byte) error {
	c.Entries = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		for _, it := range items {
			c.add(it)
		}
	case '{':
		var probe struct {
			Description json.RawMessage `json:"description"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			return err
		}
		if probe.Description != nil {
			c.add(data)
			return nil
		}

		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return err
			}
			var item json.RawMessage
			if err := dec.Decode(&item); err != nil {
				return err
			}
			c.add(item)
		}
	}
	return nil
}

func (c *CandidateIllnesses) add(raw json.RawMessage) {
	if len(c.Entries) >= maxCandidates || !isObject(raw) {
		return
	}
	var ill Illness
	if err := json.Unmarshal(raw, &ill); err != nil || ill.empty() {
		return
	}
	if strings.EqualFold(strings.TrimSpace(string(ill.Description)), NoCandidateIllnesses) {
		return
	}
	c.Entries = append(c.Entries, ill)
}
