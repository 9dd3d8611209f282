package generate

import (
	"context"

	"go.uber.org/zap"

	"worklens/internal/catalog"
	"worklens/internal/compose"
)

// Outcome is the result of one generation turn. There is no error variant:
// a failed or unconfigured backend yields fallback text, so the caller
// always receives usable, citation-bearing prose. The Fallback flag is the
// only trace of a failure the caller sees.
type Outcome struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Model    string `json:"model,omitempty"`
}

// Status describes the gateway for health reporting.
type Status struct {
	Configured bool   `json:"configured"`
	Model      string `json:"model,omitempty"`
}

// Gateway invokes the backend with a composed context and falls back to the
// offline composer on any generation failure.
type Gateway struct {
	client Client // nil means not configured; every turn uses the fallback
	caps   compose.Caps
	log    *zap.Logger
}

func NewGateway(client Client, caps compose.Caps, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{client: client, caps: caps, log: log}
}

// Generate runs one turn. Generation errors are absorbed here: the offline
// composer answers instead and the outcome is flagged as fallback.
func (g *Gateway) Generate(ctx context.Context, files []catalog.SourceFile, prompt string) Outcome {
	files = g.caps.Apply(files)

	if g.client == nil {
		return Outcome{Text: Offline(files, prompt), Fallback: true}
	}

	full := compose.Context(files, prompt, g.caps)
	text, err := g.client.GenerateText(ctx, full)
	if err != nil {
		g.log.Warn("generation failed, using offline composer",
			zap.String("model", g.client.Name()),
			zap.Error(err))
		return Outcome{Text: Offline(files, prompt), Fallback: true, Model: g.client.Name()}
	}
	return Outcome{Text: text, Model: g.client.Name()}
}

// Status reports whether a backend client is configured.
func (g *Gateway) Status() Status {
	if g.client == nil {
		return Status{}
	}
	return Status{Configured: true, Model: g.client.Name()}
}

// Close releases the backend client, if any.
func (g *Gateway) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
