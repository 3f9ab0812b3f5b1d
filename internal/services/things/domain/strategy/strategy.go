package strategy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/louisbranch/twinworks/internal/platform/async"
	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/entitytag"
	"github.com/louisbranch/twinworks/internal/services/things/domain/event"
	"github.com/louisbranch/twinworks/internal/services/things/domain/metadata"
	"github.com/louisbranch/twinworks/internal/services/things/domain/precondition"
	"github.com/louisbranch/twinworks/internal/services/things/domain/resource"
	"github.com/louisbranch/twinworks/internal/services/things/domain/sizeguard"
	"github.com/louisbranch/twinworks/internal/services/things/domain/thing"
	"github.com/louisbranch/twinworks/internal/services/things/domain/validation"
	"github.com/louisbranch/twinworks/internal/services/things/domain/wot"
)

// Strategy answers one thing command type.
type Strategy interface {
	Handler[*thing.Thing, command.Command]
	Type() command.Type
	// PreviousEntityTag is the tag of the addressed resource before the command.
	PreviousEntityTag(cmd command.Command, current *thing.Thing) (*entitytag.Tag, error)
	// NextEntityTag is the tag of the addressed resource after the command.
	NextEntityTag(cmd command.Command, next *thing.Thing) (*entitytag.Tag, error)
}

// Config holds the collaborators shared by thing strategies.
type Config struct {
	SizeGuard sizeguard.Guard
	// Validator validates mutations. Nil disables structural validation.
	Validator *validation.Adapter
	// Models resolves Thing Models for definition migrations.
	Models wot.Resolver
	// RequirePolicyID rejects creations without a policy id. Otherwise the
	// thing id is used as policy id.
	RequirePolicyID bool
}

// decision is what a mutating strategy decided before metadata, size and
// validation are applied.
type decision struct {
	eventType     event.Type
	value         any
	next          thing.Thing
	status        Status
	payload       any
	becomeCreated bool
	becomeDeleted bool
	validate      bool
}

type decideFunc func(ctx context.Context, sc Context, current *thing.Thing, cmd command.Command, path resource.Path) (decision, error)

type queryFunc func(current *thing.Thing, cmd command.Command, path resource.Path) (any, error)

// thingStrategy runs the shared pipeline: metadata directives, entity tag
// preconditions, condition, then either a query or a mutation decision
// followed by size check, metadata resolution and validation.
type thingStrategy struct {
	cmdType   command.Type
	category  command.Category
	cfg       *Config
	defined   func(current *thing.Thing, cmd command.Command) bool
	unhandled func(cmd command.Command) Result
	decide    decideFunc
	query     queryFunc
}

func (s *thingStrategy) Type() command.Type {
	return s.cmdType
}

func (s *thingStrategy) IsDefined(_ Context, current *thing.Thing, cmd command.Command) bool {
	if s.defined != nil {
		return s.defined(current, cmd)
	}
	return thing.Exists(current)
}

func (s *thingStrategy) Unhandled(_ Context, _ *thing.Thing, cmd command.Command) Result {
	if s.unhandled != nil {
		return s.unhandled(cmd)
	}
	return Fail(cmd.Headers, thingNotFound(cmd))
}

func (s *thingStrategy) PreviousEntityTag(cmd command.Command, current *thing.Thing) (*entitytag.Tag, error) {
	return entitytag.ForPath(current, cmd.Path)
}

func (s *thingStrategy) NextEntityTag(cmd command.Command, next *thing.Thing) (*entitytag.Tag, error) {
	if s.category == command.CategoryQuery {
		return s.PreviousEntityTag(cmd, next)
	}
	return entitytag.ForPath(next, cmd.Path)
}

func (s *thingStrategy) Apply(ctx context.Context, sc Context, current *thing.Thing, cmd command.Command) *async.Task[Result] {
	res, task := s.apply(ctx, sc, current, cmd)
	if task != nil {
		return settle(ctx, cmd.Headers, task)
	}
	if e, ok := res.(Error); ok {
		sc.logger().DebugContext(ctx, "command rejected",
			"command", string(cmd.Type), "code", string(e.Err.Code), "reason", e.Err.Message)
	}
	return async.Completed(res)
}

func (s *thingStrategy) apply(ctx context.Context, sc Context, current *thing.Thing, cmd command.Command) (Result, *async.Task[Result]) {
	path, ok := cmd.Resource()
	if !ok {
		return Fail(cmd.Headers, apperrors.WithMetadata(apperrors.CodeResourcePathUnknown,
			fmt.Sprintf("unknown resource path %s", cmd.Path), errorMetadata(cmd, map[string]string{"Path": cmd.Path.String()}))), nil
	}
	directives, err := metadata.ParseHeaders(cmd.Headers)
	if err != nil {
		return Fail(cmd.Headers, translate(cmd, presentMetadataHeader(cmd.Headers), err)), nil
	}
	if err := s.checkDirectives(cmd, path, directives); err != nil {
		return Fail(cmd.Headers, err), nil
	}

	previousTag, err := s.PreviousEntityTag(cmd, current)
	if err != nil {
		return Fail(cmd.Headers, err), nil
	}
	if err := precondition.CheckEntityTag(cmd, s.category, previousTag); err != nil {
		return Fail(cmd.Headers, err), nil
	}
	if err := precondition.CheckCondition(cmd, s.category, current); err != nil {
		return Fail(cmd.Headers, err), nil
	}

	if !s.category.Mutates() {
		return s.answerQuery(current, cmd, path, directives, previousTag), nil
	}

	d, err := s.decide(ctx, sc, current, cmd, path)
	if err != nil {
		return Fail(cmd.Headers, translate(cmd, "", err)), nil
	}
	next := d.next
	next.Revision = sc.NextRevision
	next.Modified = sc.now()
	if d.becomeCreated {
		next.Created = next.Modified
		next.Lifecycle = thing.LifecycleActive
	}
	if d.becomeDeleted {
		next.Lifecycle = thing.LifecycleDeleted
	}

	if !d.becomeDeleted {
		if err := s.cfg.SizeGuard.EnsureValue(next.Data(), errorMetadata(cmd, nil)); err != nil {
			return Fail(cmd.Headers, err), nil
		}
	}
	if err := resolveMetadata(current, &next, path, d, directives); err != nil {
		return Fail(cmd.Headers, translate(cmd, directives.Header(), err)), nil
	}

	build := func() Result {
		return s.buildMutation(sc, cmd, path, directives, d, next)
	}
	if !d.validate || s.cfg.Validator == nil {
		return build(), nil
	}
	preview := next
	req := validation.Request{
		ThingID:      cmd.ThingID,
		CommandType:  cmd.Type,
		Definition:   preview.Definition,
		ResourcePath: path,
		Value:        cmd.Value,
		Previous:     current,
		Preview:      &preview,
		Headers:      cmd.Headers,
	}
	validated := s.cfg.Validator.Validate(ctx, req)
	return nil, async.Then(ctx, validated, func(context.Context, struct{}) (Result, error) {
		return build(), nil
	})
}

// checkDirectives rejects metadata directives the command cannot carry and
// wildcards the addressed level does not accept.
func (s *thingStrategy) checkDirectives(cmd command.Command, path resource.Path, d metadata.Directives) error {
	if d.Empty() {
		return nil
	}
	switch {
	case len(d.Put) > 0 && (s.category == command.CategoryQuery || s.category == command.CategoryDelete):
		return headerNotSupported(cmd, command.HeaderPutMetadata)
	case len(d.Delete) > 0 && s.category == command.CategoryQuery:
		return headerNotSupported(cmd, command.HeaderDeleteMetadata)
	}
	if err := metadata.Validate(path.Kind, d.Keys()); err != nil {
		return translate(cmd, d.Header(), err)
	}
	return nil
}

func (s *thingStrategy) answerQuery(current *thing.Thing, cmd command.Command, path resource.Path, d metadata.Directives, tag *entitytag.Tag) Result {
	payload, err := s.query(current, cmd, path)
	if err != nil {
		return Fail(cmd.Headers, err)
	}
	resp := Response{
		CommandType: cmd.Type,
		EntityID:    cmd.ThingID,
		Path:        cmd.Path,
		Status:      StatusOK,
		Payload:     payload,
		Headers:     responseHeaders(cmd, tag, current.Revision),
	}
	if len(d.Get) > 0 {
		value, _ := current.Get(path.Pointer)
		selected, err := metadata.Select(any(current.Metadata), path, d.Get, value)
		if err != nil {
			return Fail(cmd.Headers, translate(cmd, command.HeaderGetMetadata, err))
		}
		resp.Metadata = selected
	}
	return Query{Response: resp}
}

func (s *thingStrategy) buildMutation(sc Context, cmd command.Command, path resource.Path, d metadata.Directives, dec decision, next thing.Thing) Result {
	evt := event.Event{
		Type:         dec.eventType,
		ThingID:      cmd.ThingID,
		Revision:     next.Revision,
		Timestamp:    next.Modified,
		ResourcePath: cmd.Path,
		Value:        dec.value,
		Headers:      eventHeaders(cmd.Headers),
	}
	if !dec.becomeDeleted && next.Metadata != nil {
		evt.Metadata = metadata.Subtree(any(next.Metadata), cmd.Path)
	}
	tag, err := s.NextEntityTag(cmd, &next)
	if err != nil {
		return Fail(cmd.Headers, err)
	}
	resp := Response{
		CommandType: cmd.Type,
		EntityID:    cmd.ThingID,
		Path:        cmd.Path,
		Status:      dec.status,
		Payload:     dec.payload,
		Headers:     responseHeaders(cmd, tag, next.Revision),
	}
	if len(d.Get) > 0 {
		value, _ := next.Get(path.Pointer)
		selected, err := metadata.Select(any(next.Metadata), path, d.Get, value)
		if err != nil {
			return Fail(cmd.Headers, translate(cmd, command.HeaderGetMetadata, err))
		}
		resp.Metadata = selected
	}
	return Mutation{
		Event:         evt,
		Response:      resp,
		BecomeCreated: dec.becomeCreated,
		BecomeDeleted: dec.becomeDeleted,
	}
}

// resolveMetadata prunes metadata of removed data and applies put and
// delete directives against the post-command value of the resource.
func resolveMetadata(current *thing.Thing, next *thing.Thing, path resource.Path, dec decision, d metadata.Directives) error {
	if dec.becomeDeleted {
		return nil
	}
	var (
		oldMeta any
		oldData any
	)
	if thing.Exists(current) && !dec.becomeCreated {
		oldMeta = any(current.Metadata)
		oldData = any(current.Data())
	}
	newData := any(next.Data())
	meta := metadata.Prune(oldMeta, oldData, newData)
	value, _ := jsonvalue.Get(newData, path.Pointer)
	var err error
	switch {
	case len(d.Put) > 0:
		meta, err = metadata.ApplyPut(meta, path, d.Put, value)
	case len(d.Delete) > 0:
		meta, err = metadata.ApplyDelete(meta, path, d.Delete, value)
	}
	if err != nil {
		return err
	}
	obj, _ := meta.(map[string]any)
	if len(obj) == 0 {
		obj = nil
	}
	next.Metadata = obj
	return nil
}

func responseHeaders(cmd command.Command, tag *entitytag.Tag, revision int64) command.Headers {
	out := command.Headers{}
	if id := cmd.Headers.CorrelationID(); id != "" {
		out[command.HeaderCorrelationID] = id
	}
	if tag != nil {
		out[command.HeaderETag] = tag.String()
	}
	out[command.HeaderEntityRevision] = strconv.FormatInt(revision, 10)
	return out
}

// eventHeaders keeps the headers worth persisting with an event.
func eventHeaders(h command.Headers) map[string]string {
	out := map[string]string{}
	for _, name := range []string{command.HeaderCorrelationID, command.HeaderPutMetadata, command.HeaderDeleteMetadata} {
		if v := h.Get(name); v != "" {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func presentMetadataHeader(h command.Headers) string {
	for _, name := range []string{command.HeaderPutMetadata, command.HeaderGetMetadata, command.HeaderDeleteMetadata} {
		if h.Has(name) {
			return name
		}
	}
	return ""
}
