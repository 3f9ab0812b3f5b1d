// Package precondition evaluates conditional request headers and conditions
// before a strategy builds its result.
package precondition

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/services/things/core/rql"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/entitytag"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

// CheckEntityTag compares the current tag of the addressed resource with the
// If-Match and If-None-Match headers. current is nil when the resource does
// not exist.
func CheckEntityTag(cmd command.Command, category command.Category, current *entitytag.Tag) error {
	if raw := cmd.Headers.Get(command.HeaderIfMatch); strings.TrimSpace(raw) != "" {
		matchers, err := entitytag.ParseMatchers(raw)
		if err != nil {
			return headerInvalid(cmd, command.HeaderIfMatch, err)
		}
		if !matchers.MatchStrong(current) {
			return preconditionFailed(cmd, command.HeaderIfMatch)
		}
	}
	if raw := cmd.Headers.Get(command.HeaderIfNoneMatch); strings.TrimSpace(raw) != "" {
		matchers, err := entitytag.ParseMatchers(raw)
		if err != nil {
			return headerInvalid(cmd, command.HeaderIfNoneMatch, err)
		}
		if matchers.MatchWeak(current) {
			if category == command.CategoryQuery {
				return NotModified(cmd, command.HeaderIfNoneMatch)
			}
			return preconditionFailed(cmd, command.HeaderIfNoneMatch)
		}
	}
	return nil
}

// CheckCondition evaluates the condition header against the current thing.
// Creations and absent things skip the check.
func CheckCondition(cmd command.Command, category command.Category, current *thing.Thing) error {
	condition := strings.TrimSpace(cmd.Headers.Get(command.HeaderCondition))
	if condition == "" || category == command.CategoryCreate || !thing.Exists(current) {
		return nil
	}
	predicate, err := rql.Parse(condition)
	if err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeConditionInvalid,
			fmt.Sprintf("condition %q is invalid", condition),
			metadata(cmd, map[string]string{"Condition": condition}), err)
	}
	doc, err := json.Marshal(current.Document(false))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "encode thing for condition", err)
	}
	if !predicate.Matches(doc) {
		return apperrors.WithMetadata(apperrors.CodeConditionFailed,
			fmt.Sprintf("condition %q does not match thing %s", condition, cmd.ThingID),
			metadata(cmd, map[string]string{"Condition": condition}))
	}
	return nil
}

// CheckIfEqual answers NotModified when mode asks to skip unchanged writes
// and next equals the existing value.
func CheckIfEqual(cmd command.Command, mode command.IfEqual, previous any, exists bool, next any) error {
	if mode == command.IfEqualUpdate || !exists {
		return nil
	}
	if jsonvalue.Equal(previous, next) {
		return NotModified(cmd, command.HeaderIfEqual)
	}
	return nil
}

// NotModified builds the NotModified error raised by header.
func NotModified(cmd command.Command, header string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodePreconditionNotModified,
		fmt.Sprintf("resource %s of thing %s not modified (%s)", cmd.Path, cmd.ThingID, header),
		metadata(cmd, map[string]string{"Header": header}))
}

func preconditionFailed(cmd command.Command, header string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodePreconditionFailed,
		fmt.Sprintf("precondition %s failed for %s of thing %s", header, cmd.Path, cmd.ThingID),
		metadata(cmd, map[string]string{"Header": header}))
}

func headerInvalid(cmd command.Command, header string, cause error) *apperrors.Error {
	return apperrors.WrapWithMetadata(apperrors.CodeHeaderInvalid,
		fmt.Sprintf("header %s is invalid", header),
		metadata(cmd, map[string]string{"Header": header}), cause)
}

func metadata(cmd command.Command, extra map[string]string) map[string]string {
	out := map[string]string{
		"ThingID": cmd.ThingID,
		"Path":    cmd.Path.String(),
	}
	if id := cmd.Headers.CorrelationID(); id != "" {
		out[apperrors.MetadataCorrelationID] = id
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
