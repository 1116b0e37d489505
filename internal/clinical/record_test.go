package clinical

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var topLevelKeys = []string{
	"bmi", "candidate_illnesses", "consultation_reason", "current_illness",
	"diagnosis_treatment", "medical_history", "personal_data", "physical_exam", "vital_signs",
}

func keysOf(t *testing.T, data []byte) []string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestDecodeRecord_FillsMissingFields(t *testing.T) {
	raw := json.RawMessage(`{
		"personal_data": {"first_name": " Ana ", "age": 42, "phone": null},
		"physical_exam": "N/A",
		"current_illness": {"description": "Cefalea", "treatment": "Paracetamol"},
		"candidate_illnesses": "No other candidate illnesses found",
		"unexpected": {"x": 1}
	}`)

	rec, err := DecodeRecord(raw)
	require.NoError(t, err)

	assert.Equal(t, Value("Ana"), rec.PersonalData.FirstName)
	assert.Equal(t, Value("42"), rec.PersonalData.Age)
	assert.Equal(t, Value(NotAvailable), rec.PersonalData.Phone)
	assert.Equal(t, Value(NotAvailable), rec.PersonalData.LastName)
	assert.Equal(t, Value(NotAvailable), rec.PhysicalExam.HeightCm)
	assert.Equal(t, Value(NotAvailable), rec.VitalSigns.HeartRate)
	assert.Equal(t, Value(GeneralPractitioner), rec.CurrentIllness.SpecialistReferral)
	assert.Equal(t, Value(NotAvailable), rec.CurrentIllness.RequiredExams)
	assert.Empty(t, rec.CandidateIllnesses.Entries)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, topLevelKeys, keysOf(t, out))

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &m))
	assert.JSONEq(t, `"No other candidate illnesses found"`, string(m["candidate_illnesses"]))
	assert.JSONEq(t, `{"value": null, "classification": "N/A"}`, string(m["bmi"]))
}

func TestDecodeRecord_EmptyObject(t *testing.T) {
	rec, err := DecodeRecord(json.RawMessage(`{}`))
	require.NoError(t, err)

	for _, v := range rec.DiagnosisTreatment.fields() {
		assert.Equal(t, Value(NotAvailable), *v)
	}
	for _, v := range rec.MedicalHistory.fields() {
		assert.Equal(t, Value(NotAvailable), *v)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	rec, err := DecodeRecord(json.RawMessage(`{"personal_data": {"first_name": "Luis"}}`))
	require.NoError(t, err)
	first, err := json.Marshal(rec)
	require.NoError(t, err)

	rec.Normalize()
	second, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestCandidateIllnesses_KeepsFirstTwoInOrder(t *testing.T) {
	var c CandidateIllnesses
	err := json.Unmarshal([]byte(`{
		"zeta": {"description": "Migraña"},
		"alpha": {"description": "Sinusitis", "specialist_referral": "Otorrinolaringología"},
		"beta": {"description": "Hipertensión"}
	}`), &c)
	require.NoError(t, err)

	require.Len(t, c.Entries, 2)
	assert.Equal(t, Value("Migraña"), c.Entries[0].Description)
	assert.Equal(t, Value("Sinusitis"), c.Entries[1].Description)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"candidate_illness_1", "candidate_illness_2"}, keysOf(t, out))
}

func TestCandidateIllnesses_Forms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Value
	}{
		{"array", `[{"description": "Gastritis"}, {"description": "Úlcera"}, {"description": "Reflujo"}]`, []Value{"Gastritis", "Úlcera"}},
		{"single illness", `{"description": "Otitis", "treatment": "Amoxicilina"}`, []Value{"Otitis"}},
		{"marker", `"No other candidate illnesses found"`, nil},
		{"null", `null`, nil},
		{"placeholders skipped", `{"candidate_illness_1": {"description": "", "treatment": "N/A"}, "candidate_illness_2": {"description": "Anemia"}}`, []Value{"Anemia"}},
		{"marker inside entry", `{"candidate_illness_1": {"description": "No other candidate illnesses found"}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c CandidateIllnesses
			require.NoError(t, json.Unmarshal([]byte(tt.input), &c))

			var got []Value
			for _, e := range c.Entries {
				got = append(got, e.Description)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue_AcceptsAnyScalar(t *testing.T) {
	var v struct {
		Num   Value `json:"num"`
		Bool  Value `json:"bool"`
		List  Value `json:"list"`
		Obj   Value `json:"obj"`
		Null  Value `json:"null"`
		Lower Value `json:"lower"`
	}
	err := json.Unmarshal([]byte(`{
		"num": 36.5,
		"bool": true,
		"list": ["Hemograma", "", "Radiografía de tórax"],
		"obj": {"a": 1, "b": "x"},
		"null": null,
		"lower": "n/a"
	}`), &v)
	require.NoError(t, err)

	assert.Equal(t, Value("36.5"), v.Num)
	assert.Equal(t, Value("true"), v.Bool)
	assert.Equal(t, Value("Hemograma, Radiografía de tórax"), v.List)
	assert.Equal(t, Value(`{"a":1,"b":"x"}`), v.Obj)
	assert.Equal(t, Value(""), v.Null)
	assert.Equal(t, Value(NotAvailable), v.Lower)
	assert.True(t, v.Null.Missing())
}

func TestTemplate_ListsEverySection(t *testing.T) {
	out, err := json.Marshal(Template())
	require.NoError(t, err)
	assert.Equal(t, topLevelKeys, keysOf(t, out))

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, []string{"candidate_illness_1", "candidate_illness_2"}, keysOf(t, m["candidate_illnesses"]))
	assert.Equal(t, []string{
		"age", "birth_date", "blood_type", "consultation_date", "first_name",
		"last_name", "mobile", "national_id", "phone", "sex",
	}, keysOf(t, m["personal_data"]))
}
