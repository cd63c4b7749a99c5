package mcpserver

// SchemaFormatContract describes the model declaration format that LLM
// consumers should follow when writing schema sources.
const SchemaFormatContract = `# Model Schema Format Contract

Model types are declared in schema source files under the schema directory.
Supported extensions: ` + "`.yaml`" + `, ` + "`.yml`" + ` and ` + "`.cue`" + `.

## YAML

` + "```" + `yaml
model: person                       # REQUIRED – model name
attributes:
  name: { type: string }
  age:  { type: number, default: 0 }
  joinedAt: { type: date, default_expr: "now()" }
relationships:
  pets: { kind: hasMany, type: pet, inverse: owner }
` + "```" + `

A YAML file may hold several documents separated by ` + "`---`" + `, one model each.

## CUE

` + "```" + `cue
model: person: {
	attributes: name: type: "string"
	relationships: pets: {kind: "hasMany", type: "pet", inverse: "owner"}
}
` + "```" + `

## Rules

1. **Names are normalized.** ` + "`BlogPost`" + `, ` + "`blog_post`" + ` and ` + "`blog-post`" + ` name the same
   model. The same applies to relationship types.
2. **A model is declared once** across all sources; the last source written wins.
3. **Relationship kind** is ` + "`belongsTo`" + ` or ` + "`hasMany`" + `; ` + "`type`" + ` is required.
4. **Defaults**: ` + "`default`" + ` is a literal, ` + "`default_expr`" + ` an expression evaluated on
   every read. They are mutually exclusive. Expressions see ` + "`recordId`" + `,
   ` + "`modelName`" + ` and ` + "`field`" + `.
5. **Encoding** is UTF-8; file paths use forward slashes.
`
