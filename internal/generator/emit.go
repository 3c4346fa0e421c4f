package generator

import (
	"fmt"
	"strings"
)

const indent = "  "

const generatedHeader = "// Code generated by schema-harvester. DO NOT EDIT.\n"

// EmitTypeScript renders interfaces for every object shape and an alias for
// a root that is not a plain object.
func EmitTypeScript(root *Shape, rootName string) string {
	objects := nameObjects(root, rootName)

	var b strings.Builder
	b.WriteString(generatedHeader)
	if !isPlainObject(root) {
		fmt.Fprintf(&b, "\nexport type %s = %s;\n", rootName, tsType(root))
	}
	for i := len(objects) - 1; i >= 0; i-- {
		obj := objects[i]
		fmt.Fprintf(&b, "\nexport interface %s {\n", obj.Name)
		for _, f := range obj.Fields {
			opt := ""
			if f.Optional(obj) {
				opt = "?"
			}
			fmt.Fprintf(&b, "%s%s%s: %s;\n", indent, propertyKey(f.Key), opt, tsType(f.Shape))
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func tsType(s *Shape) string {
	var parts []string
	if s.Object != nil {
		parts = append(parts, s.Object.Name)
	}
	if s.Array != nil {
		elem := tsType(s.Array)
		if strings.Contains(elem, " | ") {
			elem = "(" + elem + ")"
		}
		parts = append(parts, elem+"[]")
	}
	if s.String {
		parts = append(parts, "string")
	}
	if s.Integer || s.Number {
		parts = append(parts, "number")
	}
	if s.Bool {
		parts = append(parts, "boolean")
	}
	if s.Null {
		parts = append(parts, "null")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, " | ")
}

// EmitZod renders one schema const per object shape, dependencies first,
// then the root schema, each followed by its inferred type.
func EmitZod(root *Shape, rootName string) string {
	objects := nameObjects(root, rootName)

	var b strings.Builder
	b.WriteString(generatedHeader)
	b.WriteString("import * as z from \"zod\";\n")
	for _, obj := range objects {
		fmt.Fprintf(&b, "\nexport const %sSchema = z.object({\n", obj.Name)
		for _, f := range obj.Fields {
			expr := zodType(f.Shape)
			if f.Optional(obj) {
				expr += ".optional()"
			}
			fmt.Fprintf(&b, "%s%s: %s,\n", indent, propertyKey(f.Key), expr)
		}
		b.WriteString("});\n")
		fmt.Fprintf(&b, "export type %s = z.infer<typeof %sSchema>;\n", obj.Name, obj.Name)
	}
	if !isPlainObject(root) {
		fmt.Fprintf(&b, "\nexport const %sSchema = %s;\n", rootName, zodType(root))
		fmt.Fprintf(&b, "export type %s = z.infer<typeof %sSchema>;\n", rootName, rootName)
	}
	return b.String()
}

func zodType(s *Shape) string {
	var parts []string
	if s.Object != nil {
		parts = append(parts, s.Object.Name+"Schema")
	}
	if s.Array != nil {
		parts = append(parts, "z.array("+zodType(s.Array)+")")
	}
	if s.String {
		parts = append(parts, "z.string()")
	}
	switch {
	case s.Number:
		parts = append(parts, "z.number()")
	case s.Integer:
		parts = append(parts, "z.number().int()")
	}
	if s.Bool {
		parts = append(parts, "z.boolean()")
	}

	switch len(parts) {
	case 0:
		if s.Null {
			return "z.null()"
		}
		return "z.unknown()"
	case 1:
		if s.Null {
			return parts[0] + ".nullable()"
		}
		return parts[0]
	default:
		expr := "z.union([" + strings.Join(parts, ", ") + "])"
		if s.Null {
			expr += ".nullable()"
		}
		return expr
	}
}
