package database

// Operator names for query, update and projection documents. Using the
// constants instead of hardcoded strings prevents invalid queries due to
// typos.
//
// See https://docs.mongodb.com/manual/reference/operator/query/

// Comparison
const (
	Equal            = "$eq"
	GreaterThan      = "$gt"
	GreaterThanEqual = "$gte"
	In               = "$in"
	LesserThan       = "$lt"
	LesserThanEqual  = "$lte"
	NotEqual         = "$ne"
	NoneIn           = "$nin"
)

// Logical
const (
	And = "$and"
	Not = "$not"
	Nor = "$nor"
	Or  = "$or"
)

// Element
const (
	Exists = "$exists"
	Type   = "$type"
)

// Evaluation
const (
	Expr       = "$expr"
	JsonSchema = "$jsonSchema"
	Mod        = "$mod"
	Regex      = "$regex"
	Text       = "$text"
	Where      = "$where"
)

// Geospatial
const (
	GeoIntersects = "$geoIntersects"
	GeoWithin     = "$geoWithin"
	Near          = "$near"
	NearSphere    = "$nearSphere"
)

// Array
const (
	All       = "$all"
	ElemMatch = "$elemMatch"
	Size      = "$size"
)

// Bitwise
const (
	BitsAllClear = "$bitsAllClear"
	BitsAllSet   = "$bitsAllSet"
	BitsAnyClear = "$bitsAnyClear"
	BitsAnySet   = "$bitsAnySet"
)

// Comment
const (
	Comment = "$comment"
)

// Projection
const (
	Meta  = "$meta"
	Slice = "$slice"
)

// Update
const (
	AddToSet    = "$addToSet"
	CurrentDate = "$currentDate"
	Inc         = "$inc"
	Max         = "$max"
	Min         = "$min"
	Mul         = "$mul"
	Pop         = "$pop"
	Pull        = "$pull"
	PullAll     = "$pullAll"
	Push        = "$push"
	Rename      = "$rename"
	Set         = "$set"
	SetOnInsert = "$setOnInsert"
	Unset       = "$unset"
)
