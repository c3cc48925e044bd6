package protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	//go:embed schemas/hello.schema.json
	helloSchemaJSON string
	//go:embed schemas/cmd.schema.json
	cmdSchemaJSON string

	schemasOnce sync.Once
	helloSchema *jsonschema.Schema
	cmdSchema   *jsonschema.Schema
	schemasErr  error
)

func compileSchemas() {
	helloSchema, schemasErr = jsonschema.CompileString("hello.schema.json", helloSchemaJSON)
	if schemasErr != nil {
		return
	}
	cmdSchema, schemasErr = jsonschema.CompileString("cmd.schema.json", cmdSchemaJSON)
}

func validate(which func() *jsonschema.Schema, raw []byte) error {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return fmt.Errorf("compile schemas: %w", schemasErr)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return which().Validate(v)
}

// ValidateHello checks a raw HELLO message against its schema.
func ValidateHello(raw []byte) error {
	return validate(func() *jsonschema.Schema { return helloSchema }, raw)
}

// ValidateCmd checks a raw CMD message against its schema.
func ValidateCmd(raw []byte) error {
	return validate(func() *jsonschema.Schema { return cmdSchema }, raw)
}

// DecodeCmd validates and decodes a CMD message.
func DecodeCmd(raw []byte) (CmdMsg, error) {
	var cmd CmdMsg
	if err := ValidateCmd(raw); err != nil {
		return cmd, err
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return cmd, err
	}
	return cmd, nil
}
