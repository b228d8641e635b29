package mcpserver

// PostFormatContract describes the source post format that LLM consumers
// should follow when writing posts.
const PostFormatContract = `# Scribe Post Format

Every post is a Markdown file in one of the configured posts directories.
It starts with a YAML metadata block closed by a ` + "`---`" + ` line. The block may
also be opened by a ` + "`---`" + ` line (fenced style).

## Structure

` + "```" + `markdown
title: Human-readable title          # defaults to the file name
status: published                    # draft (default), review or published
timestamp: 2012-09-04 10:00:00 AM    # site time format; defaults to now
tags: [go, tooling]                  # OPTIONAL list
slug: custom-slug                    # defaults to the slugified title
link: https://example.com/article    # OPTIONAL; makes the post an external link
via: Example                         # OPTIONAL source credit
via-link: https://example.com
updated: 2012-09-05 09:00:00 AM      # OPTIONAL
template: custom.html                # OPTIONAL page template
content-template: _content.html      # OPTIONAL content partial
---

Body text in Markdown.

The first <!-- more --> marker ends the teaser.
Lazy links: [text][*] with a matching [*]: https://example.com definition.
` + "```" + `

## Rules

1. A published post with a future timestamp is **pending** and is not built.
2. Unknown status values are treated as draft.
3. Any other metadata key is kept and passed to templates.
4. Files are UTF-8 with a trailing newline.
`
