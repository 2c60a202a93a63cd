package commands

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/mindhaven/carekit/careapi"
	"github.com/mindhaven/carekit/httpclient"
)

const schemaVersion = "v1"

// response is the JSON envelope every command prints.
type response struct {
	SchemaVersion string            `json:"schema_version"`
	Success       bool              `json:"success"`
	Data          any               `json:"data,omitempty"`
	Error         string            `json:"error,omitempty"`
	Kind          string            `json:"kind,omitempty"`
	Status        int               `json:"status,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// printedError marks an error whose JSON form was already written.
type printedError struct {
	err error
}

func (e printedError) Error() string { return "error already printed" }

func (e printedError) Unwrap() error { return e.err }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSuccess(w io.Writer, data any) error {
	return printJSON(w, response{SchemaVersion: schemaVersion, Success: true, Data: data})
}

// printError writes err as a failure envelope and returns a printedError.
// Classified errors carry their kind, status and field messages.
func printError(w io.Writer, err error) error {
	resp := response{SchemaVersion: schemaVersion, Error: err.Error()}

	var ie *careapi.InputError
	if errors.As(err, &ie) {
		resp.Kind = "invalid_input"
		resp.Fields = ie.Fields
	} else if ce, ok := httpclient.AsClassified(err); ok {
		resp.Error = ce.Message()
		resp.Kind = ce.Kind().String()
		resp.Status = ce.StatusCode()
		resp.Fields = ce.FieldErrors()
	}

	if perr := printJSON(w, resp); perr != nil {
		return errors.Join(err, perr)
	}
	return printedError{err: err}
}
