package pipeline

import (
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
	"github.com/AnyUserName/imgpress-cli/internal/worker"
)

// OutputFormat picks the format requested for a source. Sources without
// a tag of their own (generic bitmaps) keep their pixels losslessly as
// png when the original format is requested.
func OutputFormat(src, requested format.Format) format.Format {
	if requested != format.KeepOriginal {
		return requested
	}
	if src == format.Unknown {
		return format.PNG
	}
	return src
}

// NewExecutor returns the worker function: decode, map parameters,
// encode. Every failure is reported in the response, never returned or
// raised, so one bad file cannot affect its siblings.
func NewExecutor(reg *codec.Registry) worker.Func {
	return func(req worker.Request) worker.Response {
		start := time.Now()
		out, outFormat, err := compress(reg, req)
		resp := worker.Response{ID: req.ID, Elapsed: time.Since(start)}
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Success = true
		resp.Output = out
		resp.OutputFormat = string(outFormat)
		return resp
	}
}

// compress handles a single source: decode strictly before encode.
func compress(reg *codec.Registry, req worker.Request) ([]byte, format.Format, error) {
	src, _ := format.Resolve(req.MediaType)
	target := OutputFormat(src, req.Settings.Format)

	img, err := reg.Decode(src, req.Source)
	if err != nil {
		return nil, format.Unknown, err
	}

	b := img.Bounds()
	params := quality.Map(target, req.Settings.Preset, req.Settings.Lossless, b.Dx()*b.Dy())

	data, err := reg.Encode(target, img, params)
	if err != nil {
		return nil, format.Unknown, err
	}
	return data, params.Format, nil
}
