package lang

import "strings"

// nodeName extracts the text of a node's "name" field, or "" if the node
// has none (tree-sitter grammars consistently expose a definition's
// identifier under a "name" field).
func nodeName(n Node, source []byte) string {
	field := n.ChildByFieldName("name")
	if field.IsNull() {
		return ""
	}

	return string(source[field.StartByte():field.EndByte()])
}

// hasPrecedingSiblingContaining walks n's preceding siblings of the given
// kinds, stopping at the first sibling of another kind, looking for one
// whose text contains needle. Used for Rust's #[test] attributes and Java
// test annotations that live as siblings immediately above the definition.
func hasPrecedingSiblingContaining(n Node, source []byte, kinds []string, needle string) bool {
	for sibling := n.PrevSibling(); !sibling.IsNull(); sibling = sibling.PrevSibling() {
		matched := false

		for _, k := range kinds {
			if sibling.Type() == k {
				matched = true

				break
			}
		}

		if !matched {
			break
		}

		text := string(source[sibling.StartByte():sibling.EndByte()])
		if strings.Contains(text, needle) {
			return true
		}
	}

	return false
}

// Rust reports function_item, impl_item, struct_item, enum_item,
// trait_item, mod_item, and macro_definition as complete blocks (spec
// §4.B). Test code is recognized by #[test]/#[cfg(test)] attributes on the
// function, or a `mod tests` container.
func Rust() *Adapter {
	isTestNode := func(n Node, source []byte) bool {
		switch n.Type() {
		case "mod_item":
			return nodeName(n, source) == "tests"
		case "function_item":
			return hasPrecedingSiblingContaining(n, source, []string{"attribute_item"}, "test")
		default:
			return false
		}
	}

	return newAdapter(
		"rust",
		[]string{"rs"},
		[]string{"function_item", "impl_item", "struct_item", "enum_item", "trait_item", "mod_item", "macro_definition"},
		[]string{"mod_item"},
		isTestNode,
		func(string) bool { return false },
	)
}

// Go reports function_declaration, method_declaration, and
// type_declaration as complete blocks. Test/benchmark functions are
// recognized by the standard TestXxx/BenchmarkXxx naming convention.
func Go() *Adapter {
	isTestNode := func(n Node, source []byte) bool {
		if n.Type() != "function_declaration" && n.Type() != "method_declaration" {
			return false
		}

		name := nodeName(n, source)

		return strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") || strings.HasPrefix(name, "Example") || strings.HasPrefix(name, "Fuzz")
	}

	return newAdapter(
		"go",
		[]string{"go"},
		[]string{"function_declaration", "method_declaration", "type_declaration"},
		nil,
		isTestNode,
		func(path string) bool { return strings.HasSuffix(path, "_test.go") },
	)
}

// javascriptLike builds the shared JS/TS/TSX adapter: function_declaration,
// method_definition, class_declaration, export_statement, and (for
// TypeScript) interface_declaration. Arrow functions assigned to a variable
// are not block kinds of their own.
func javascriptLike(name string, exts []string, withInterface bool) *Adapter {
	acceptable := []string{"function_declaration", "method_definition", "class_declaration", "export_statement"}
	if withInterface {
		acceptable = append(acceptable, "interface_declaration")
	}

	isTestNode := func(n Node, source []byte) bool {
		name := strings.ToLower(funcOrClassName(n, source))

		return strings.HasPrefix(name, "test") || strings.Contains(name, "_test") ||
			describeOrItAncestor(n, source)
	}

	return newAdapter(
		name,
		exts,
		acceptable,
		nil,
		isTestNode,
		func(path string) bool {
			lower := strings.ToLower(path)

			return strings.Contains(lower, ".test.") || strings.Contains(lower, ".spec.")
		},
	)
}

// funcOrClassName resolves the "name" field, falling back to the name of
// an export_statement's first named child.
func funcOrClassName(n Node, source []byte) string {
	if name := nodeName(n, source); name != "" {
		return name
	}

	if n.Type() == "export_statement" && n.NamedChildCount() > 0 {
		return funcOrClassName(n.NamedChild(0), source)
	}

	return ""
}

// describeOrItAncestor reports whether n sits anywhere inside a
// describe/it/test(...) call expression (including member forms such as
// describe.only(...)), the idiomatic JS/TS test-framework shape.
func describeOrItAncestor(n Node, source []byte) bool {
	for parent := n.Parent(); !parent.IsNull(); parent = parent.Parent() {
		if parent.Type() != "call_expression" {
			continue
		}

		callee := parent.ChildByFieldName("function")
		if !callee.IsNull() && callee.Type() == "member_expression" {
			callee = callee.ChildByFieldName("object")
		}

		if callee.IsNull() {
			continue
		}

		switch string(source[callee.StartByte():callee.EndByte()]) {
		case "describe", "it", "test":
			return true
		}
	}

	return false
}

// JavaScript covers .js/.jsx.
func JavaScript() *Adapter {
	return javascriptLike("javascript", []string{"js", "jsx"}, false)
}

// TypeScript covers .ts.
func TypeScript() *Adapter {
	return javascriptLike("typescript", []string{"ts"}, true)
}

// TSX covers .tsx.
func TSX() *Adapter {
	return javascriptLike("tsx", []string{"tsx"}, true)
}

// Python reports function_definition, class_definition, and
// decorated_definition as complete blocks. Test functions/classes follow
// pytest/unittest naming (test_*/Test*) or live in a test_*.py file.
func Python() *Adapter {
	isTestNode := func(n Node, source []byte) bool {
		target := n
		if n.Type() == "decorated_definition" {
			if def := n.ChildByFieldName("definition"); !def.IsNull() {
				target = def
			}
		}

		name := nodeName(target, source)

		return strings.HasPrefix(name, "test_") || strings.HasPrefix(name, "Test")
	}

	return newAdapter(
		"python",
		[]string{"py"},
		[]string{"function_definition", "class_definition", "decorated_definition"},
		nil,
		isTestNode,
		func(path string) bool {
			base := path
			if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
				base = path[idx+1:]
			}

			return strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py")
		},
	)
}

// cLike builds the shared C/C++ adapter: function_definition,
// struct_specifier, enum_specifier, and (C++ only) class_specifier and
// namespace_definition.
func cLike(name string, exts []string, cpp bool) *Adapter {
	acceptable := []string{"function_definition", "struct_specifier", "enum_specifier"}
	if cpp {
		acceptable = append(acceptable, "class_specifier", "namespace_definition")
	}

	return newAdapter(
		name,
		exts,
		acceptable,
		[]string{"namespace_definition"},
		func(Node, []byte) bool { return false },
		func(string) bool { return false },
	)
}

// C covers .c/.h.
func C() *Adapter {
	return cLike("c", []string{"c", "h"}, false)
}

// CPP covers .cpp/.cc/.cxx/.hpp/.hxx.
func CPP() *Adapter {
	return cLike("cpp", []string{"cpp", "cc", "cxx", "hpp", "hxx"}, true)
}

// Java reports class_declaration, method_declaration,
// interface_declaration, constructor_declaration, and enum_declaration as
// complete blocks. Test classes/methods are recognized by a @Test
// annotation or a class name ending in "Test".
func Java() *Adapter {
	isTestNode := func(n Node, source []byte) bool {
		if n.Type() == "class_declaration" && strings.HasSuffix(nodeName(n, source), "Test") {
			return true
		}

		return hasPrecedingSiblingContaining(n, source, []string{"marker_annotation", "annotation"}, "Test")
	}

	return newAdapter(
		"java",
		[]string{"java"},
		[]string{"class_declaration", "method_declaration", "interface_declaration", "constructor_declaration", "enum_declaration"},
		nil,
		isTestNode,
		func(string) bool { return false },
	)
}

// Ruby reports method, class, module, and singleton_method as complete
// blocks. Methods named test_* and *_spec.rb/*_test.rb files are treated
// as test code; RSpec describe/it blocks are not recognized.
func Ruby() *Adapter {
	isTestNode := func(n Node, source []byte) bool {
		name := nodeName(n, source)

		return strings.HasPrefix(name, "test_")
	}

	return newAdapter(
		"ruby",
		[]string{"rb"},
		[]string{"method", "class", "module", "singleton_method"},
		[]string{"module"},
		isTestNode,
		func(path string) bool { return strings.HasSuffix(path, "_spec.rb") || strings.HasSuffix(path, "_test.rb") },
	)
}

// PHP reports function_definition, method_declaration, class_declaration,
// trait_declaration, and interface_declaration as complete blocks.
// PHPUnit-style test classes end in "Test".
func PHP() *Adapter {
	isTestNode := func(n Node, source []byte) bool {
		return n.Type() == "class_declaration" && strings.HasSuffix(nodeName(n, source), "Test")
	}

	return newAdapter(
		"php",
		[]string{"php"},
		[]string{"function_definition", "method_declaration", "class_declaration", "trait_declaration", "interface_declaration"},
		nil,
		isTestNode,
		func(path string) bool { return strings.HasSuffix(path, "Test.php") },
	)
}

// Markdown treats the smallest heading-bounded section and fenced code
// blocks as complete blocks. Markdown has no notion of test code.
func Markdown() *Adapter {
	return newAdapter(
		"markdown",
		[]string{"md", "markdown"},
		[]string{"section", "fenced_code_block", "atx_heading", "setext_heading"},
		nil,
		func(Node, []byte) bool { return false },
		func(string) bool { return false },
	)
}

// All returns one Adapter per spec §4.A supported language.
func All() []*Adapter {
	return []*Adapter{
		Rust(), Go(), JavaScript(), TypeScript(), TSX(), Python(),
		C(), CPP(), Java(), Ruby(), PHP(), Markdown(),
	}
}
