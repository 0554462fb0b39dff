package prompts

import (
	_ "embed"
)

//go:embed extraction.txt
var Extraction string

//go:embed reflection.txt
var Reflection string
