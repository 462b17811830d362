package mcpserver

// EntryFormatContract describes the Markdown entry format that LLM consumers
// should follow when creating journal records.
const EntryFormatContract = `# moodlog Entry Format Contract

A journal record is written as Markdown with optional YAML frontmatter.

## Structure

` + "```" + `markdown
---
title: Morning run                 # OPTIONAL – defaults to the first "# " heading
mood: 3                            # OPTIONAL – numeric mood id
activities: [1, 4]                 # OPTIONAL – numeric activity ids
date: 2024-03-01T07:30             # OPTIONAL – defaults to now
status: ACTIVE                     # OPTIONAL – ACTIVE (default) or INACTIVE
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **Frontmatter keys are English schema fields.** Values and body may use any language.
2. **` + "`" + `mood` + "`" + ` and ` + "`" + `activities` + "`" + ` are ids, not names.** Activity names
   come from the activity catalog; unknown ids are shown as "Activity N".
3. **Dates** accept ` + "`" + `2006-01-02` + "`" + `, ` + "`" + `2006-01-02T15:04` + "`" + `,
   ` + "`" + `2006-01-02 15:04` + "`" + `, ` + "`" + `2006-01-02T15:04:05` + "`" + ` or full RFC 3339.
   Dates without an offset are read in the ` + "`" + `timezone` + "`" + ` passed to the tool, so
   ` + "`" + `2024-03-01T01:00` + "`" + ` in Asia/Ho_Chi_Minh is stored as 2024-02-29T18:00Z and
   counts towards 1 March in that user's statistics.
4. **Malformed YAML** is not rejected: the whole text becomes the body. A field with the
   wrong type (e.g. ` + "`" + `mood: happy` + "`" + `) or an unreadable date is an error.
5. **Encoding** is UTF-8.

## Attachments

- Attach images or PDFs with the ` + "`" + `attach_file` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the body.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.
- Reference attachments by the returned URL: ` + "`" + `![sunset](/api/attachments/<key>.jpg)` + "`" + `

## Example

` + "```" + `markdown
---
mood: 4
activities: [2, 7]
date: 2024-03-10 19:30
---

# Evening walk

Long walk by the river with [the dog].

![River](/api/attachments/0f8e5a2c-5b1d-4c1e-9d55-3f8c2a6b1e77.jpg)
` + "```" + `
`
