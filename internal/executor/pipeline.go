package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"schema-harvester/internal/types"
	"schema-harvester/internal/validate"
)

// processList runs fetch, validate, write and generate for the list call
// of ep. Every path ends in exactly one run log event.
func (o *Orchestrator) processList(ctx context.Context, rc *RunContext, ep types.Endpoint) Outcome {
	out := Outcome{Endpoint: ep.Name, Mode: types.ModeList}
	layout := o.deps.Layout

	call, err := ep.ListCall()
	if err != nil {
		return o.skip(rc, out, err)
	}
	url, err := rc.Credentials.BuildRequestURL(call.URL)
	if err != nil {
		return o.fail(rc, out, "url", err, nil)
	}

	res, fetchErr := o.deps.Fetcher.Fetch(ctx, call, url, rc.Headers)
	if res != nil {
		out.StatusCode = res.StatusCode
		if err := o.write(ctx, rc, &out, layout.Raw(ep.Name), indentJSON(res.Body)); err != nil {
			return o.fail(rc, out, "write", err, nil)
		}
	}
	if fetchErr != nil {
		return o.fail(rc, out, "fetch", fetchErr, nil)
	}

	return o.finishList(ctx, rc, out, ep.Name, res.Body)
}

// processStored runs the list pipeline on the raw.json a previous run kept.
func (o *Orchestrator) processStored(ctx context.Context, rc *RunContext, name string) Outcome {
	out := Outcome{Endpoint: name, Mode: types.ModeList}
	path := o.deps.Layout.Raw(name)
	body, err := os.ReadFile(path)
	if err != nil {
		return o.fail(rc, out, "read", &types.IOError{Path: path, Err: err}, nil)
	}
	return o.finishList(ctx, rc, out, name, body)
}

// finishList validates a list response body, then writes data.json and the
// generated files.
func (o *Orchestrator) finishList(ctx context.Context, rc *RunContext, out Outcome, name string, body []byte) Outcome {
	env, err := validate.ValidateEnvelope(body)
	if err != nil {
		return o.fail(rc, out, "validate", err, nil)
	}
	out.Items = env.Records
	if out.StatusCode == 0 {
		out.StatusCode = env.StatusCode
	}

	if err := o.write(ctx, rc, &out, o.deps.Layout.Data(name), env.Data); err != nil {
		return o.fail(rc, out, "write", err, nil)
	}
	if err := o.generate(ctx, rc, &out, name, env.Data); err != nil {
		return o.fail(rc, out, "generate", err, nil)
	}

	out.Status = StatusSuccess
	o.logEvent(rc.Log.Info(name, map[string]any{
		"name":       name,
		"mode":       out.Mode,
		"status":     env.Status,
		"statusCode": env.StatusCode,
		"numItems":   env.Records,
		"artifacts":  out.Artifacts,
	}))
	return out
}

// processCreate sends the create call of ep. An error-shaped response is
// kept in raw.create.json and logged as an error; data.create.json is only
// written for a created record.
func (o *Orchestrator) processCreate(ctx context.Context, rc *RunContext, ep types.Endpoint) Outcome {
	out := Outcome{Endpoint: ep.Name, Mode: types.ModeCreate}
	layout := o.deps.Layout

	call, err := ep.CreateCall()
	if err != nil {
		return o.skip(rc, out, err)
	}
	url, err := rc.Credentials.BuildRequestURL(call.URL)
	if err != nil {
		return o.fail(rc, out, "url", err, nil)
	}

	res, fetchErr := o.deps.Fetcher.Fetch(ctx, call, url, rc.Headers)
	if res != nil {
		out.StatusCode = res.StatusCode
		if err := o.write(ctx, rc, &out, layout.RawCreate(ep.Name), indentJSON(res.Body)); err != nil {
			return o.fail(rc, out, "write", err, nil)
		}
	}
	if fetchErr != nil {
		return o.fail(rc, out, "fetch", fetchErr, nil)
	}

	if err := o.generateCreateBody(ctx, rc, &out, ep); err != nil {
		return o.fail(rc, out, "generate", err, nil)
	}

	result, err := validate.ValidateCreateResult(res.Body)
	if err != nil {
		return o.fail(rc, out, "validate", err, nil)
	}
	if result.Kind == validate.CreateKindError {
		rejected := &types.RejectedError{Endpoint: ep.Name, Message: result.Message()}
		return o.fail(rc, out, "create", rejected, map[string]any{"record": result.Record})
	}

	out.Items = 1
	if err := o.write(ctx, rc, &out, layout.DataCreate(ep.Name), indentJSON(result.Record)); err != nil {
		return o.fail(rc, out, "write", err, nil)
	}

	out.Status = StatusSuccess
	o.logEvent(rc.Log.Info(ep.Name, map[string]any{
		"name":       ep.Name,
		"mode":       out.Mode,
		"statusCode": out.StatusCode,
		"id":         *result.Success.ID,
		"artifacts":  out.Artifacts,
	}))
	return out
}

// generate writes schema.ts, interface.ts and, with a documenter, schema.json.
func (o *Orchestrator) generate(ctx context.Context, rc *RunContext, out *Outcome, name string, sample []byte) error {
	layout := o.deps.Layout

	schema, err := o.deps.Generator.GenerateSchema(ctx, name, sample)
	if err != nil {
		return err
	}
	if err := o.write(ctx, rc, out, layout.Schema(name), []byte(schema)); err != nil {
		return err
	}

	iface, err := o.deps.Generator.GenerateType(ctx, name, sample)
	if err != nil {
		return err
	}
	if err := o.write(ctx, rc, out, layout.Interface(name), []byte(iface)); err != nil {
		return err
	}

	if o.deps.Documenter == nil {
		return nil
	}
	doc, err := o.deps.Documenter.GenerateJSONSchema(ctx, name, sample)
	if err != nil {
		return err
	}
	return o.write(ctx, rc, out, layout.JSONSchema(name), doc)
}

func (o *Orchestrator) generateCreateBody(ctx context.Context, rc *RunContext, out *Outcome, ep types.Endpoint) error {
	sample, err := json.Marshal(ep.CreateRequestBody)
	if err != nil {
		return &types.GenerationError{Name: ep.Name, Backend: o.deps.Generator.Backend(), Err: err}
	}
	schema, err := o.deps.Generator.GenerateSchema(ctx, ep.Name+"-create-body", sample)
	if err != nil {
		return err
	}
	return o.write(ctx, rc, out, o.deps.Layout.CreateBodySchema(ep.Name), []byte(schema))
}

// write persists one artifact and mirrors it. Mirror failures are kept on
// the outcome and do not fail the endpoint.
func (o *Orchestrator) write(ctx context.Context, rc *RunContext, out *Outcome, path string, content []byte) error {
	n, err := o.deps.Writer.WriteArtifact(ctx, path, content)
	if err != nil {
		return err
	}
	out.Artifacts = append(out.Artifacts, path)
	out.Bytes += int64(n)

	if o.deps.Mirror == nil {
		return nil
	}
	if err := o.deps.Mirror.Put(ctx, rc.RunID, path, content); err != nil {
		o.console.Warn("failed to mirror artifact", "path", path, "error", err)
		out.MirrorErrors = append(out.MirrorErrors, fmt.Sprintf("%s: %v", path, err))
	}
	return nil
}

func (o *Orchestrator) skip(rc *RunContext, out Outcome, err error) Outcome {
	out.Status = StatusSkipped
	out.ErrorKind = types.KindConfiguration
	out.Message = err.Error()
	o.logEvent(rc.Log.Error(out.Endpoint, map[string]any{
		"name":  out.Endpoint,
		"mode":  out.Mode,
		"kind":  out.ErrorKind,
		"error": out.Message,
	}, source(out.Mode, "catalog")))
	return out
}

func (o *Orchestrator) fail(rc *RunContext, out Outcome, stage string, err error, extra map[string]any) Outcome {
	out.Status = StatusFailed
	out.ErrorKind = types.KindOf(err)
	out.Message = err.Error()

	data := map[string]any{
		"name":  out.Endpoint,
		"mode":  out.Mode,
		"kind":  out.ErrorKind,
		"error": out.Message,
	}
	var valErr *types.ValidationError
	if errors.As(err, &valErr) {
		data["shape"] = valErr.Shape
		data["issues"] = valErr.Issues
	}
	var trErr *types.TransportError
	if errors.As(err, &trErr) && trErr.StatusCode != 0 {
		data["statusCode"] = trErr.StatusCode
	}
	if len(out.Artifacts) > 0 {
		data["artifacts"] = out.Artifacts
	}
	for k, v := range extra {
		data[k] = v
	}

	o.logEvent(rc.Log.Error(out.Endpoint, data, source(out.Mode, stage)))
	return out
}

func (o *Orchestrator) logEvent(err error) {
	if err != nil {
		o.console.Error("failed to write run log", "error", err)
	}
}

func source(mode types.Mode, stage string) string {
	return fmt.Sprintf("executor.%s.%s", mode, stage)
}

// indentJSON formats a JSON body as JSON.stringify(body, null, 2). A body
// that is not JSON is kept as received.
func indentJSON(body []byte) []byte {
	out, err := validate.Stringify(body, "  ")
	if err != nil {
		return body
	}
	return out
}
