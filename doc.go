// Package docmerge implements the core pipeline of the document-merging
// service: one or two uploaded PDF documents are combined with a fixed
// guidelines document through a streaming language-model call, and the
// synthesized Markdown is rendered to a print-styled A4 PDF using headless
// Chrome.
//
// # Pipeline
//
// The pipeline runs strictly forward:
//
//  1. Request validation (1-2 source file references)
//  2. Guideline resolution (operator-configured, mandatory)
//  3. Merge synthesis via a Generator delta stream
//  4. Version persistence (internal/artifact)
//  5. Markdown to HTML conversion via Goldmark
//  6. PDF rendering via headless Chrome (go-rod)
//
// # Synthesis
//
// A Synthesizer drives a Generator to completion, concatenating text
// deltas in arrival order. Observers receive each delta as it arrives;
// observer failures are best-effort and never affect the accumulated
// content:
//
//	synth := docmerge.NewSynthesizer(gen, docmerge.GuidelinesFromEnv(), logger)
//	content, err := synth.Create(ctx, docmerge.MergeRequest{Files: files})
//
// # Rendering
//
// A Renderer converts Markdown to a paginated A4 PDF with fixed print
// styling. Browser instances are expensive (~200MB), so servers share
// them through a RendererPool:
//
//	pool := docmerge.NewRendererPool(docmerge.ResolvePoolSize(0))
//	defer pool.Close()
//
//	r := pool.Acquire()
//	defer pool.Release(r)
//	pdf, err := r.Render(ctx, markdown)
//
// # Browser Requirements
//
// PDF generation requires Chrome/Chromium. The go-rod library downloads a
// managed Chromium instance on first run. For containers and CI, set
// ROD_BROWSER_BIN to a pre-installed binary; the sandbox is disabled
// automatically in those environments.
package docmerge
