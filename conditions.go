package explorer

type Condition string

const (
	CondEq    Condition = "eq"
	CondNotEq Condition = "neq"
	CondLike  Condition = "like"

	CondGreater     Condition = ">"
	CondGreaterOrEq Condition = ">="
	CondLess        Condition = "<"
	CondLessOrEq    Condition = "<="

	// CondNotBetween takes exactly two values, the closed interval to exclude.
	CondNotBetween Condition = "nbetween"
)
