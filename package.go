// Package persuader drives an LLM text endpoint until its output
// conforms to a caller-declared schema.
//
// Model providers offer no structural guarantee on their output. The
// pipeline in this package closes that gap with a bounded
// retry-with-feedback loop: it sends a prompt, decodes and validates the
// response, converts violations into corrective feedback, and resubmits
// on the same conversation until the output conforms or the attempt
// budget runs out. The guarantee is structural conformance only; whether
// the answer is semantically right remains the model's problem.
//
// # Quick Start
//
//	s := schema.MustCompile(schema.Object(
//	    schema.String("name", "Person's name").Required(),
//	    schema.Integer("score", "Quality score 1-10").Min(1).Max(10).Required(),
//	))
//
//	llm, _ := openai.New()
//	pipe := persuader.New(providers.NewLCG(llm).WithModelName("gpt-4o"))
//
//	result, err := pipe.Run(ctx, &persuader.Request{
//	    Schema:  s,
//	    Context: "You review code submissions.",
//	    Input:   submissionJSON,
//	})
//	if err != nil {
//	    // programming error: nil schema or missing provider
//	}
//	if result.OK {
//	    person, _ := persuader.DecodeValue[Person](result)
//	    fmt.Println(person.Name, len(result.Attempts))
//	} else {
//	    fmt.Println(result.Err.Kind, result.Err)
//	}
//
// # How a Run Proceeds
//
// Attempt 1 sends the bare prompt: caller context, the schema rendered
// as JSON Schema, and the input. Each response is decoded
// (format.Decode) and checked (schema.Check). On failure the
// [FeedbackSynthesizer] turns the violations into a corrective message
// that becomes the suffix of the next attempt's prompt, sent on the same
// session so the model sees the whole exchange. The retry before
// exhaustion carries a final-attempt warning with the full issue list.
//
// Retryable provider errors consume an attempt and keep both the session
// handle and any pending feedback. Fatal provider errors and context
// cancellation stop the run immediately. Expected failures never surface
// as Go errors: Run returns a *RunResult whose Err field carries a
// kind-tagged *RunError (parse, validation, provider, cancelled,
// exhausted) plus the full attempt log.
//
// # Sessions
//
// Conversational continuity lives behind the narrow [Session] contract:
// Ensure resolves or creates an opaque handle, Send continues the
// conversation it names. Pipelines normally derive a Session from a
// [Provider] via [NewProviderSession]; callers may pass an existing
// handle in Request.Session to continue a prior conversation, and every
// result echoes the handle it used.
//
// A Pipeline holds no per-run state, so independent runs may execute
// concurrently on the same instance.
//
// # Observability
//
// Register hooks to watch the loop: [BeforeAttemptHook],
// [AfterAttemptHook], [FeedbackHook], [RunEndHook]. The loggers package
// provides ready-made YAML and zap implementations.
package persuader
