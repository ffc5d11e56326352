package rules

import (
	"github.com/shopspring/decimal"

	"github.com/fhirlint/bundlecheck/pkg/ucum"
	"github.com/fhirlint/bundlecheck/pkg/verror"
)

// checkQuestionAnswer locates a question within a QuestionnaireResponse
// item array by system+code or linkId, then diffs the observed answer
// against params' expected shape. value is whatever field_path resolved
// to — normally the item array itself.
//
// params:
//
//	"linkId"   string   // matches item.linkId; when set, system/code are ignored
//	"system"   string   // paired with "code" to match item.code[]
//	"code"     string
//	"required" bool     // ANSWER_REQUIRED when no answer is present
//	"multiple" bool     // when false (default), >1 answer is a violation
//	"expected" map[string]any with:
//	    "type"     string   // "integer"|"decimal"|"string"|"coding"|"quantity"
//	    "value"    any      // exact-match literal
//	    "min"/"max" string  // decimal bounds, as strings for exact arithmetic
//	    "valueSet" []any    // allowed coding codes
//	    "unit"     map[string]any{"system","code"}
func checkQuestionAnswer(value any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	items, ok := value.([]any)
	if !ok {
		emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
			"variant": "questionset_data_missing",
		})
		return
	}

	item, found := findQuestionItem(items, rule.Params)
	if !found {
		emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
			"variant": "question_not_found",
		})
		return
	}

	answers, _ := item["answer"].([]any)
	if len(answers) == 0 {
		if required, _ := rule.Params["required"].(bool); required {
			emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
				"variant": "answer_required",
			})
		}
		return
	}

	if multiple, _ := rule.Params["multiple"].(bool); !multiple && len(answers) > 1 {
		emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
			"variant": "answer_multiple_not_allowed", "count": len(answers),
		})
	}

	expected, _ := rule.Params["expected"].(map[string]any)
	if expected == nil {
		return
	}
	first, _ := answers[0].(map[string]any)
	evaluateAnswerValue(first, expected, pointer, entryIndex, rule, result)
}

func findQuestionItem(items []any, params map[string]any) (map[string]any, bool) {
	linkID, _ := params["linkId"].(string)
	system, _ := params["system"].(string)
	code, _ := params["code"].(string)

	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if linkID != "" {
			if id, _ := item["linkId"].(string); id == linkID {
				return item, true
			}
			continue
		}
		if system == "" && code == "" {
			continue
		}
		codings, _ := item["code"].([]any)
		for _, c := range codings {
			coding, ok := c.(map[string]any)
			if !ok {
				continue
			}
			sys, _ := coding["system"].(string)
			cd, _ := coding["code"].(string)
			if sys == system && cd == code {
				return item, true
			}
		}
	}
	return nil, false
}

func evaluateAnswerValue(answer map[string]any, expected map[string]any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	wantType, _ := expected["type"].(string)
	actual, actualKey, ok := extractAnswerValue(answer, wantType)
	if !ok {
		emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
			"variant": "invalid_answer_value", "expected": expected, "actual": answer,
		})
		return
	}

	if literal, has := expected["value"]; has {
		if !decimalOrDeepEqual(literal, actual) {
			emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
				"variant": "invalid_answer_value", "expected": literal, "actual": actual,
			})
		}
		return
	}

	minS, hasMin := expected["min"].(string)
	maxS, hasMax := expected["max"].(string)
	if hasMin || hasMax {
		d, err := toDecimal(actual)
		if err != nil {
			emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
				"variant": "invalid_answer_value", "expected": expected, "actual": actual,
			})
			return
		}
		if hasMin {
			if min, err := decimal.NewFromString(minS); err == nil && d.LessThan(min) {
				emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
					"variant": "answer_out_of_range", "min": minS, "actual": actual,
				})
				return
			}
		}
		if hasMax {
			if max, err := decimal.NewFromString(maxS); err == nil && d.GreaterThan(max) {
				emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
					"variant": "answer_out_of_range", "max": maxS, "actual": actual,
				})
				return
			}
		}
	}

	if valueSet, has := expected["valueSet"].([]any); has && actualKey == "valueCoding" {
		coding, _ := actual.(map[string]any)
		code, _ := coding["code"].(string)
		if !containsString(valueSet, code) {
			emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
				"variant": "answer_not_in_valueset", "valueSet": valueSet, "actual": code,
			})
			return
		}
	}

	if unitSpec, has := expected["unit"].(map[string]any); has && actualKey == "valueQuantity" {
		checkAnswerUnit(unitSpec, actual, pointer, entryIndex, rule, result)
	}
}

// extractAnswerValue finds the answer[x] member matching wantType and
// returns its value along with the exact key it was found under (needed to
// distinguish valueCoding from valueString downstream).
func extractAnswerValue(answer map[string]any, wantType string) (value any, key string, ok bool) {
	candidates := map[string]string{
		"integer":  "valueInteger",
		"decimal":  "valueDecimal",
		"string":   "valueString",
		"boolean":  "valueBoolean",
		"date":     "valueDate",
		"coding":   "valueCoding",
		"quantity": "valueQuantity",
	}
	k, known := candidates[wantType]
	if !known {
		return nil, "", false
	}
	v, present := answer[k]
	if !present {
		return nil, "", false
	}
	return v, k, true
}

func checkAnswerUnit(unitSpec map[string]any, quantity any, pointer string, entryIndex int, rule Rule, result *verror.Result) {
	q, ok := quantity.(map[string]any)
	if !ok {
		return
	}
	wantCode, _ := unitSpec["code"].(string)
	if wantCode == "" {
		return
	}
	gotCode, _ := q["code"].(string)
	if ucum.GetCanonicalUnit(gotCode) == ucum.GetCanonicalUnit(wantCode) {
		return
	}
	emit(result, verror.SourceCodeMaster, rule, pointer, entryIndex, verror.Details{
		"variant": "invalid_answer_value", "expected_unit": wantCode, "actual_unit": gotCode,
	})
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), nil
	case string:
		return decimal.NewFromString(t)
	case map[string]any:
		if val, ok := t["value"].(float64); ok {
			return decimal.NewFromFloat(val), nil
		}
	}
	return decimal.Decimal{}, errNotNumeric
}

func decimalOrDeepEqual(want, got any) bool {
	wd, errW := toDecimal(want)
	gd, errG := toDecimal(got)
	if errW == nil && errG == nil {
		return wd.Equal(gd)
	}
	return deepEqualAny(want, got)
}

func containsString(values []any, s string) bool {
	for _, v := range values {
		if str, ok := v.(string); ok && str == s {
			return true
		}
	}
	return false
}
