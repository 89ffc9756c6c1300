// Package format normalizes raw LLM output into structured values.
//
// Models rarely return bare JSON: answers arrive wrapped in markdown
// fences, preceded by prose, or occasionally empty. This package extracts
// the first JSON value from such output and decodes it, reporting parse
// failures with enough position detail to build corrective feedback.
//
//	value, perr := format.Decode(raw)
//	if perr != nil {
//	    // perr.Message and perr.Excerpt describe what went wrong
//	}
package format
