package precondition

import (
	"errors"
	"testing"

	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/entitytag"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
)

func withHeaders(headers map[string]string) command.Command {
	cmd := command.ModifyAttribute("a:b", jsonvalue.MustPointer("/location"), "garage")
	cmd.Headers = command.NewHeaders(headers)
	return cmd
}

func code(err error) apperrors.Code {
	if err == nil {
		return ""
	}
	return apperrors.As(err).Code
}

func TestCheckEntityTag(t *testing.T) {
	abc := &entitytag.Tag{Opaque: "abc"}
	tests := []struct {
		name     string
		headers  map[string]string
		category command.Category
		current  *entitytag.Tag
		want     apperrors.Code
	}{
		{name: "no headers", category: command.CategoryModify, current: abc},
		{name: "if-match mismatch", headers: map[string]string{"If-Match": `"xyz"`}, category: command.CategoryModify, current: abc, want: apperrors.CodePreconditionFailed},
		{name: "if-match match", headers: map[string]string{"If-Match": `"abc"`}, category: command.CategoryModify, current: abc},
		{name: "if-match star absent", headers: map[string]string{"If-Match": `*`}, category: command.CategoryModify, want: apperrors.CodePreconditionFailed},
		{name: "if-none-match star present", headers: map[string]string{"If-None-Match": `*`}, category: command.CategoryModify, current: abc, want: apperrors.CodePreconditionFailed},
		{name: "if-none-match star absent", headers: map[string]string{"If-None-Match": `*`}, category: command.CategoryModify},
		{name: "if-none-match query", headers: map[string]string{"If-None-Match": `W/"abc"`}, category: command.CategoryQuery, current: abc, want: apperrors.CodePreconditionNotModified},
		{name: "malformed", headers: map[string]string{"If-Match": `abc`}, category: command.CategoryModify, current: abc, want: apperrors.CodeHeaderInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEntityTag(withHeaders(tt.headers), tt.category, tt.current)
			if got := code(err); got != tt.want {
				t.Fatalf("code = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestCheckCondition(t *testing.T) {
	current := &thing.Thing{ID: "a:b", Lifecycle: thing.LifecycleActive, Attributes: map[string]any{"location": "kitchen"}}

	if err := CheckCondition(withHeaders(map[string]string{"condition": `attributes.location = "kitchen"`}), command.CategoryModify, current); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	err := CheckCondition(withHeaders(map[string]string{"condition": `attributes.location = "garage"`}), command.CategoryModify, current)
	if code(err) != apperrors.CodeConditionFailed {
		t.Fatalf("expected condition failed, got %v", err)
	}
	err = CheckCondition(withHeaders(map[string]string{"condition": `attributes.location =`}), command.CategoryModify, current)
	if code(err) != apperrors.CodeConditionInvalid {
		t.Fatalf("expected condition invalid, got %v", err)
	}
	if err := CheckCondition(withHeaders(map[string]string{"condition": `attributes.location = "garage"`}), command.CategoryCreate, current); err != nil {
		t.Fatalf("creations skip conditions, got %v", err)
	}
	if err := CheckCondition(withHeaders(map[string]string{"condition": `attributes.location = "garage"`}), command.CategoryModify, nil); err != nil {
		t.Fatalf("absent things skip conditions, got %v", err)
	}
}

func TestCheckIfEqual(t *testing.T) {
	cmd := withHeaders(map[string]string{"correlation-id": "c-1"})
	err := CheckIfEqual(cmd, command.IfEqualSkip, "kitchen", true, "kitchen")
	if !errors.Is(err, apperrors.New(apperrors.CodePreconditionNotModified, "")) {
		t.Fatalf("expected not modified, got %v", err)
	}
	if apperrors.As(err).CorrelationID() != "c-1" {
		t.Fatal("expected correlation id on error")
	}
	if err := CheckIfEqual(cmd, command.IfEqualSkip, "kitchen", true, "garage"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := CheckIfEqual(cmd, command.IfEqualUpdate, "kitchen", true, "kitchen"); err != nil {
		t.Fatalf("update mode never skips, got %v", err)
	}
}
