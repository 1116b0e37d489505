package clinical

import (
	"math"
	"regexp"
	"strconv"
)

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

var bmiClasses = []struct {
	below float64
	label string
}{
	{18.5, "Underweight"},
	{25, "Normal weight"},
	{30, "Overweight"},
	{35, "Obesity class I"},
	{40, "Obesity class II"},
}

const obesityClassIII = "Obesity class III (morbid)"

// CalculateBMI parses free-text weight (kg) and height (cm, or m when the
// number is 3 or less) and returns the BMI rounded to two decimals. ok is
// false when either measure is missing or unusable.
func CalculateBMI(weight, height string) (bmi float64, ok bool) {
	w, ok := parseMeasure(weight)
	if !ok || w <= 0 {
		return 0, false
	}
	h, ok := parseMeasure(height)
	if !ok {
		return 0, false
	}
	if h > 3 {
		h /= 100
	}
	if h <= 0 {
		return 0, false
	}
	return math.Round(w/(h*h)*100) / 100, true
}

// ClassifyBMI maps a BMI to its category.
func ClassifyBMI(bmi float64) string {
	for _, c := range bmiClasses {
		if bmi < c.below {
			return c.label
		}
	}
	return obesityClassIII
}

// ApplyBMI sets r.BMI from the physical exam. It overwrites any previous
// value, so applying it twice gives the same record.
func ApplyBMI(r *Record) *Record {
	if r == nil {
		return nil
	}
	bmi, ok := CalculateBMI(string(r.PhysicalExam.WeightKg), string(r.PhysicalExam.HeightCm))
	if !ok {
		r.BMI = BMI{Classification: NotAvailable}
		return r
	}
	r.BMI = BMI{Value: &bmi, Classification: ClassifyBMI(bmi)}
	return r
}

func parseMeasure(s string) (float64, bool) {
	digits := nonNumeric.ReplaceAllString(s, "")
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
