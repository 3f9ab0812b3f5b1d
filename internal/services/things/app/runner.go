package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"

	apperrors "github.com/louisbranch/twinworks/internal/platform/errors"
	"github.com/louisbranch/twinworks/internal/platform/errors/i18n"
	"github.com/louisbranch/twinworks/internal/services/things/domain/command"
	"github.com/louisbranch/twinworks/internal/services/things/domain/core/jsonvalue"
	"github.com/louisbranch/twinworks/internal/services/things/domain/engine"
	"github.com/louisbranch/twinworks/internal/services/things/domain/strategy"
)

// maxLineSize bounds one NDJSON command line.
const maxLineSize = 4 << 20

// ErrNoHandler reports a Runner without thing handler.
var ErrNoHandler = errors.New("thing handler is required")

// ThingHandler runs thing commands.
type ThingHandler interface {
	Handle(ctx context.Context, cmd command.Command) (engine.Outcome, error)
}

// ConfigHandler runs WoT validation config commands.
type ConfigHandler interface {
	Handle(ctx context.Context, cmd strategy.ConfigCommand) (strategy.Result, error)
}

// Runner reads one JSON command per line and writes one JSON answer per
// line:
//
//	{"type":"things.commands:modifyAttribute","thingId":"org.acme:lamp","path":"/attributes/location","value":"hall","headers":{"if-match":"\"rev:1\""}}
//
// Config commands carry "scopeId" instead of "thingId" and "path".
type Runner struct {
	Things  ThingHandler
	Configs ConfigHandler
	// Pretty indents every answer. The output is then no longer NDJSON.
	Pretty bool
	Logger *slog.Logger
}

// Run processes commands from r until EOF or ctx is done. It stops early
// only when the journal and the thing state disagree.
func (rn *Runner) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	if rn.Things == nil {
		return ErrNoHandler
	}
	logger := rn.logger()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	out := bufio.NewWriter(w)
	defer out.Flush()

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		answer, err := rn.handleLine(ctx, raw)
		if err != nil {
			if engine.IsNonRetryable(err) {
				return fmt.Errorf("line %d: %w", line, err)
			}
			logger.ErrorContext(ctx, "command failed", "line", line, "error", err)
			answer = encodeError(apperrors.Wrap(apperrors.CodeInternal, "internal error", err), "")
		}
		if rn.Pretty {
			answer = pretty.Pretty(answer)
		} else {
			answer = append(answer, '\n')
		}
		if _, err := out.Write(answer); err != nil {
			return fmt.Errorf("write answer: %w", err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("flush answer: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

func (rn *Runner) handleLine(ctx context.Context, raw []byte) ([]byte, error) {
	if !gjson.ValidBytes(raw) {
		return encodeError(apperrors.New(apperrors.CodeThingPayloadInvalid, "command line is not valid JSON").
			With("Reason", "malformed JSON"), ""), nil
	}
	doc := gjson.ParseBytes(raw)
	headers := command.Headers{}
	doc.Get("headers").ForEach(func(key, value gjson.Result) bool {
		headers = headers.With(key.String(), value.String())
		return true
	})
	locale := i18n.Negotiate(headers.Get("accept-language"))

	var value any
	if v := doc.Get("value"); v.Exists() {
		decoded, err := jsonvalue.Decode([]byte(v.Raw))
		if err != nil {
			return encodeError(apperrors.Wrap(apperrors.CodeThingPayloadInvalid, "value is not valid JSON", err).
				With("Reason", err.Error()), locale), nil
		}
		value = decoded
	}

	cmdType := strings.TrimSpace(doc.Get("type").String())
	if strings.HasPrefix(cmdType, strategy.ConfigCommandPrefix) {
		if rn.Configs == nil {
			return rn.encodeResult(ctx, strategy.Empty{CommandType: cmdType}, locale), nil
		}
		res, err := rn.Configs.Handle(ctx, strategy.ConfigCommand{
			Type:     strategy.ConfigCommandType(cmdType),
			ConfigID: doc.Get("configId").String(),
			ScopeID:  doc.Get("scopeId").String(),
			Value:    value,
			Headers:  headers,
		})
		if err != nil {
			return nil, err
		}
		return rn.encodeResult(ctx, res, locale), nil
	}

	path, err := jsonvalue.ParsePointer(doc.Get("path").String())
	if err != nil {
		return encodeError(apperrors.WrapWithMetadata(apperrors.CodeResourcePathUnknown, err.Error(),
			map[string]string{"Path": doc.Get("path").String()}, err), locale), nil
	}
	outcome, err := rn.Things.Handle(ctx, command.Command{
		Type:    command.Type(cmdType),
		ThingID: doc.Get("thingId").String(),
		Path:    path,
		Value:   value,
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}
	return rn.encodeResult(ctx, outcome.Result, locale), nil
}

func (rn *Runner) logger() *slog.Logger {
	if rn.Logger == nil {
		return slog.Default()
	}
	return rn.Logger
}

func (rn *Runner) encodeResult(ctx context.Context, res strategy.Result, locale string) []byte {
	switch v := res.(type) {
	case strategy.Mutation:
		out := encodeResponse("mutation", v.Response)
		evt, err := json.Marshal(v.Event)
		if err != nil {
			rn.logger().WarnContext(ctx, "event omitted from answer",
				"thing_id", v.Event.ThingID, "revision", v.Event.Revision, "error", err)
			return out
		}
		out, _ = sjson.SetRawBytes(out, "event", evt)
		return out
	case strategy.Query:
		return encodeResponse("query", v.Response)
	case strategy.Error:
		return encodeError(v.Err, locale)
	case strategy.Unhandled:
		out, _ := sjson.SetBytes([]byte(`{"result":"unhandled"}`), "commandType", v.CommandType)
		return out
	case strategy.Empty:
		out, _ := sjson.SetBytes([]byte(`{"result":"empty"}`), "commandType", v.CommandType)
		return out
	}
	return []byte(`{"result":"unknown"}`)
}

func encodeResponse(kind string, resp strategy.Response) []byte {
	out, _ := sjson.SetBytes([]byte(`{}`), "result", kind)
	out, _ = sjson.SetBytes(out, "commandType", string(resp.CommandType))
	out, _ = sjson.SetBytes(out, "entityId", resp.EntityID)
	out, _ = sjson.SetBytes(out, "path", resp.Path.String())
	out, _ = sjson.SetBytes(out, "status", string(resp.Status))
	if resp.Payload != nil {
		if payload, err := json.Marshal(resp.Payload); err == nil {
			out, _ = sjson.SetRawBytes(out, "payload", payload)
		}
	}
	if len(resp.Metadata) > 0 {
		if meta, err := json.Marshal(resp.Metadata); err == nil {
			out, _ = sjson.SetRawBytes(out, "metadata", meta)
		}
	}
	if len(resp.Headers) > 0 {
		if headers, err := json.Marshal(resp.Headers); err == nil {
			out, _ = sjson.SetRawBytes(out, "headers", headers)
		}
	}
	return out
}

// encodeError renders err with a description in the negotiated locale.
func encodeError(err *apperrors.Error, locale string) []byte {
	if locale == "" {
		locale = i18n.BaseLocale
	}
	out, _ := sjson.SetBytes([]byte(`{"result":"error"}`), "error.code", string(err.Code))
	out, _ = sjson.SetBytes(out, "error.kind", string(err.Kind()))
	out, _ = sjson.SetBytes(out, "error.message", err.Message)
	description := i18n.GetCatalog(locale).Format(string(err.Code), err.Metadata)
	out, _ = sjson.SetBytes(out, "error.description", description)
	out, _ = sjson.SetBytes(out, "error.status", err.Code.HTTPStatus())
	st := status.Convert(err.ToGRPCStatus(locale, description))
	out, _ = sjson.SetBytes(out, "error.grpcCode", st.Code().String())
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			out, _ = sjson.SetBytes(out, "error.info.reason", info.GetReason())
			out, _ = sjson.SetBytes(out, "error.info.domain", info.GetDomain())
			if len(info.GetMetadata()) > 0 {
				out, _ = sjson.SetBytes(out, "error.info.metadata", info.GetMetadata())
			}
		}
	}
	if id := err.CorrelationID(); id != "" {
		out, _ = sjson.SetBytes(out, "correlationId", id)
	}
	return out
}
