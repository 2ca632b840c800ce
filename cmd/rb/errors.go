package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rulebook-dev/rulebook/internal/feedback"
)

// FatalError writes an error message to stderr and exits with code 1.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// FatalErrorWithHint writes an error message with an actionable hint to
// stderr and exits.
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(1)
}

// WarnError writes a warning message to stderr and returns.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// FatalErrorRespectJSON exits with err, as {"error","code"} on stderr in
// --json mode. The code comes from feedback.ErrorCode.
func FatalErrorRespectJSON(err error) {
	if jsonOutput {
		outputJSONError(err, feedback.ErrorCode(err))
	}
	FatalError("%v", err)
}

// outputJSON writes v as indented JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// outputJSONError writes {"error": ..., "code": ...} to stderr and exits
// with code 1. An empty code is omitted.
func outputJSONError(err error, code string) {
	_ = json.NewEncoder(os.Stderr).Encode(jsonError(err, code))
	os.Exit(1)
}

func jsonError(err error, code string) map[string]string {
	errObj := map[string]string{"error": err.Error()}
	if code != "" {
		errObj["code"] = code
	}
	return errObj
}
