// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigSeedFileNotFound     Code = "config.seed_file.not_found"

	CodeStoreEntityNotFound  Code = "store.entity.get.not_found"
	CodeStoreConflict        Code = "store.conflict"
	CodeStoreInvalidInput    Code = "store.invalid_input"
	CodeStoreDatabaseFailure Code = "store.database.failure"
	CodeStoreSchemaInvalid   Code = "store.schema.invalid_value"
	CodeStoreBackendUnknown  Code = "store.backend.not_found"

	CodePluginNotFound     Code = "plugin.registry.not_found"
	CodePluginFrameInvalid Code = "plugin.frame.invalid_input"
	CodePluginCallFailure  Code = "plugin.call.failure"

	CodeConnectorCallTransient Code = "connector.call.transient"
	CodeConnectorFrameInvalid  Code = "connector.frame.invalid_input"

	CodeStrategyConfigInvalid Code = "strategy.config.invalid_value"
	CodeStrategyCallFailure   Code = "strategy.call.failure"

	CodeRouterSpecInvalid Code = "router.spec.invalid_value"

	CodeSpiderTransitionInvalid Code = "spider.lifecycle.transition.invalid"
	CodeSpiderCancelled         Code = "spider.run.cancelled"
	CodeSpiderRetryExhausted    Code = "spider.retry.exhausted"

	CodeCLIInputInvalid Code = "cli.input.invalid"
	CodeCLISetupFailure Code = "cli.setup.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldLayer(value string) Attr {
	return Field("layer", value)
}

func FieldIteration(value int) Attr {
	return Field("iteration", value)
}

func FieldSeed(value string) Attr {
	return Field("seed", value)
}

func FieldPlugin(value string) Attr {
	return Field("plugin", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeStoreDatabaseFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

// IsTransient reports whether the error should be retried with backoff
// rather than aborting the run.
func IsTransient(err error) bool {
	return reason(CodeOf(err)) == "transient"
}

// IsCancelled treats both tagged cancellations and bare context errors as
// a clean shutdown signal.
func IsCancelled(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return reason(CodeOf(err)) == "cancelled"
}

func Join(errs ...error) error {
	return oops.Code(CodeStoreDatabaseFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
