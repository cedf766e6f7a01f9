// Package config is the pass's configuration surface (SPEC_FULL.md §11):
// the knobs a cmd/dswp invocation needs before it can call pkg/pass.Run —
// which module/procedure/loop to target, how many worker cores the
// eventual pipeline may use, and the display flags — validated up front with
// github.com/go-playground/validator/v10 so a malformed invocation fails
// before any analysis runs, the same "fail before doing expensive work"
// shape pass.ResolveEnvironment already applies to runtime symbols.
//
// Grounded on alexisbeaulieu97-Streamy's internal/config package: a
// sync.Once-backed shared *validator.Validate instance
// (validator_instance.go) and a ValidateConfig entry point
// (config_validation.go) that runs struct-tag validation first and
// cross-field checks after.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Config is everything a cmd/dswp invocation needs to attempt one
// transformation.
type Config struct {
	// ModulePath identifies the target module on disk or by import path;
	// pkg/ir construction/loading is a collaborator out of this config's
	// scope (spec.md §4.2's "construction out of scope" treatment extends
	// here too — Config only names the target, it does not parse it).
	ModulePath string `validate:"required"`

	// Procedure is the name of the procedure containing the target loop.
	Procedure string `validate:"required"`

	// LoopHeader names the target loop's header block within Procedure.
	LoopHeader string `validate:"required"`

	// MaxCores is validated here but not passed on to pkg/pass, which
	// always plans two stages (spec.md §4.4); the floor of 1 rules out the
	// nonsensical zero-core invocation at the config boundary.
	MaxCores uint32 `validate:"gte=1"`

	// Verbose and Stats mirror beepfd-bpf-optimizer/cmd/optimizer's
	// `--verbose`/`--stats` flags (SPEC_FULL.md §11).
	Verbose bool
	Stats   bool
}

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func sharedValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New()
	})
	return validatorInst
}

// ValidationError reports a config.Validate failure with the offending
// field named, matching pkg/planner's IneligibleError/pkg/loopinfo's Error
// shape of "one type, one named reason" used elsewhere in this module.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dswp: config: field %q: %s", e.Field, e.Reason)
}

// Validate runs struct-tag validation over cfg, then the one cross-field
// check struct tags can't express: LoopHeader must not equal Procedure,
// compared case-insensitively (a loop header block and its enclosing procedure are never the same
// name in this module's IR, so a collision means the caller mixed up the
// two flags).
func Validate(cfg *Config) error {
	if cfg == nil {
		return &ValidationError{Field: "config", Reason: "configuration is nil"}
	}

	v := sharedValidator()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	if strings.EqualFold(cfg.LoopHeader, cfg.Procedure) {
		return &ValidationError{Field: "loop_header", Reason: "must not equal procedure name"}
	}

	return nil
}

func convertValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &ValidationError{Field: "config", Reason: err.Error()}
	}
	first := verrs[0]
	return &ValidationError{
		Field:  strings.ToLower(first.Field()),
		Reason: fmt.Sprintf("failed %q validation", first.Tag()),
	}
}
