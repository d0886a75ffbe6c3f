package validator

var defaultMessages = map[string]string{
	"required":         "The :attribute field is required.",
	"required_if":      "The :attribute field is required.",
	"required_with":    "The :attribute field is required.",
	"required_without": "The :attribute field is required.",
	"email":            "The :attribute field must be a valid email address.",
	"url":              "The :attribute field must be a valid URL.",
	"uuid":             "The :attribute field must be a valid UUID.",
	"uuid4":            "The :attribute field must be a valid UUID.",
	"ulid":             "The :attribute field must be a valid ULID.",
	"slug":             "The :attribute field must only contain lowercase letters, numbers and dashes.",
	"alpha":            "The :attribute field must only contain letters.",
	"alphanum":         "The :attribute field must only contain letters and numbers.",
	"numeric":          "The :attribute field must be a number.",
	"number":           "The :attribute field must be a number.",
	"boolean":          "The :attribute field must be true or false.",
	"oneof":            "The selected :attribute is invalid.",
	"eqfield":          "The :attribute field must match :other.",
	"nefield":          "The :attribute field and :other must be different.",
	"datetime":         "The :attribute field must match the format :param.",
	"ip":               "The :attribute field must be a valid IP address.",
	"json":             "The :attribute field must be a valid JSON string.",
	"timezone":         "The :attribute field must be a valid timezone.",

	"min.string":  "The :attribute field must be at least :param characters.",
	"min.array":   "The :attribute field must have at least :param items.",
	"min.numeric": "The :attribute field must be at least :param.",
	"max.string":  "The :attribute field must not be greater than :param characters.",
	"max.array":   "The :attribute field must not have more than :param items.",
	"max.numeric": "The :attribute field must not be greater than :param.",
	"len.string":  "The :attribute field must be :param characters.",
	"len.array":   "The :attribute field must contain :param items.",
	"len.numeric": "The :attribute field must be :param.",
	"gt.numeric":  "The :attribute field must be greater than :param.",
	"gte.numeric": "The :attribute field must be greater than or equal to :param.",
	"lt.numeric":  "The :attribute field must be less than :param.",
	"lte.numeric": "The :attribute field must be less than or equal to :param.",
	"gt.string":   "The :attribute field must be greater than :param characters.",
	"lt.string":   "The :attribute field must be less than :param characters.",
	"gt.array":    "The :attribute field must have more than :param items.",
	"lt.array":    "The :attribute field must have less than :param items.",
}
