package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/shotframe/pkg/observability"
	"github.com/matzehuels/shotframe/pkg/template"
)

// composeMockup embeds the device captures into the template and writes the
// SVG to the output root. Image references are written relative to it.
func (r *Runner) composeMockup(ctx context.Context, page *pageCapture, opts Options, paths Paths) (doc *template.Document, err error) {
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, ArtifactMockupSVG)
	start := time.Now()
	defer func() { hooks.OnRenderComplete(ctx, ArtifactMockupSVG, time.Since(start), err) }()

	tpl := opts.Template
	if tpl == nil {
		if tpl, err = r.loadTemplate(); err != nil {
			return nil, err
		}
	}

	doc, err = template.Compose(tpl.WithBaseDir(paths.Root), r.Config.Regions(), page.placements,
		template.WithThemeColor(page.theme),
		template.WithBackdrop(r.Config.Backdrop),
		template.WithHrefResolver(template.RelativeTo(paths.Root)))
	if err != nil {
		return nil, err
	}
	if err := doc.WriteFile(paths.Mockup()); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Runner) loadTemplate() (*template.Document, error) {
	data, dir, err := r.Config.LoadTemplate()
	if err != nil {
		return nil, err
	}
	return template.Parse(data, dir)
}
