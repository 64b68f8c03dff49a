package hypothesis

import (
	"fmt"
	"math"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub015/pkg/cerrors"
)

func compareError(model Model, verb string) error {
	return cerrors.Error{
		ErrorCode: cerrors.ErrorTypeSteadyStateChecks,
		Reason:    fmt.Sprintf("actual value: '%v' %s the expected value: '%v'", model.a, verb, model.b),
	}
}

//Model contains operands and operator for the comparison operations
// a and b attribute belongs to operands and operator attribute belongs to operator
type Model struct {
	a         float64
	b         float64
	operator  string
	tolerance float64
}

//FirstValue sets the first operand
func FirstValue(a float64) *Model {
	model := Model{}
	return model.FirstValue(a)
}

//FirstValue sets the first operand
func (model *Model) FirstValue(a float64) *Model {
	model.a = a
	return model
}

//SecondValue sets the second operand
func (model *Model) SecondValue(b float64) *Model {
	model.b = b
	return model
}

//Criteria sets the criteria/operator
func (model *Model) Criteria(criteria string) *Model {
	model.operator = criteria
	return model
}

//Tolerance sets the allowed slack applied on the comparison boundary
func (model *Model) Tolerance(tolerance float64) *Model {
	model.tolerance = tolerance
	return model
}

//Compare runs the comparison and fails with a user friendly error when the
// criteria does not hold or the operator is unknown
func (model Model) Compare() error {
	switch model.operator {
	case ">=":
		if model.a < model.b-model.tolerance {
			return compareError(model, "is not greater than or equal to")
		}
	case "<=":
		if model.a > model.b+model.tolerance {
			return compareError(model, "is not less than or equal to")
		}
	case ">":
		if model.a <= model.b-model.tolerance {
			return compareError(model, "is not greater than")
		}
	case "<":
		if model.a >= model.b+model.tolerance {
			return compareError(model, "is not less than")
		}
	case "==":
		if math.Abs(model.a-model.b) > model.tolerance {
			return compareError(model, "is not equal to")
		}
	case "!=":
		if math.Abs(model.a-model.b) <= model.tolerance {
			return compareError(model, "is equal to")
		}
	default:
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeSteadyStateChecks,
			Reason:    "criteria '" + model.operator + "' not supported in the steady state hypothesis",
		}
	}
	return nil
}
