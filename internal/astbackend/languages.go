package astbackend

import (
	"unsafe"

	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// newGrammar wires up a language pointer and its default query into a
// grammarEntry, or returns nil if the language itself fails to attach
// (the only failure mode SetLanguage reports reliably).
func newGrammar(languagePtr unsafe.Pointer, queryStr string) *grammarEntry {
	language := tree_sitter.NewLanguage(languagePtr)
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(language); err != nil {
		return nil
	}

	query, _ := tree_sitter.NewQuery(language, queryStr)
	// The tree-sitter Go binding can return a typed-nil error on success;
	// checking the query pointer is the only reliable success signal.
	g := &grammarEntry{language: language}
	if query != nil {
		g.defaultQuery = query
		g.defaultQuerySource = queryStr
	}
	return g
}

func setupJavaScript() *grammarEntry {
	return newGrammar(tree_sitter_javascript.Language(), `
        (function_declaration name: (identifier) @function.name) @function
        (generator_function_declaration name: (identifier) @function.name) @function
        (variable_declarator
            name: (identifier) @function.name
            value: [(arrow_function) (function_expression) (generator_function)]) @function
        (variable_declarator
            name: (identifier) @variable.name
            value: (_) @variable.value) @variable
        (method_definition name: (property_identifier) @method.name) @method
        (class_declaration name: (identifier) @class.name) @class
        (export_statement declaration: (_) @export)
        (import_statement source: (string) @import.source) @import
    `)
}

func setupTypeScript() *grammarEntry {
	return newGrammar(tree_sitter_typescript.LanguageTypescript(), `
        (function_declaration name: (identifier) @function.name) @function
        (generator_function_declaration name: (identifier) @function.name) @function
        (method_definition name: (property_identifier) @method.name) @method
        (arrow_function) @function
        (function_expression name: (identifier) @function.name) @function
        (class_declaration name: (type_identifier) @class.name) @class
        (interface_declaration name: (type_identifier) @interface.name) @interface
        (type_alias_declaration name: (type_identifier) @type.name) @type
        (enum_declaration name: (identifier) @enum.name) @enum
        (export_statement declaration: (_) @export)
        (import_statement source: (string) @import.source) @import
    `)
}

func setupGo() *grammarEntry {
	return newGrammar(tree_sitter_go.Language(), `
        (function_declaration name: (identifier) @function.name) @function
        (method_declaration
            receiver: (parameter_list) @method.receiver
            name: (field_identifier) @method.name) @method
        (type_declaration
            (type_spec name: (type_identifier) @type.name)) @type
        (func_literal) @function
        (import_spec path: (interpreted_string_literal) @import.path) @import
    `)
}

func setupPython() *grammarEntry {
	return newGrammar(tree_sitter_python.Language(), `
        (class_definition
            body: (block
                (function_definition name: (identifier) @method.name))) @method
        (function_definition name: (identifier) @function.name) @function
        (class_definition name: (identifier) @class.name) @class
        (import_statement) @import
        (import_from_statement) @import
    `)
}

func setupRust() *grammarEntry {
	return newGrammar(tree_sitter_rust.Language(), `
        (impl_item
            body: (declaration_list
                (function_item name: (identifier) @method.name))) @method
        (trait_item
            body: (declaration_list
                (function_item name: (identifier) @method.name))) @method
        (function_item name: (identifier) @function.name) @function
        (struct_item name: (type_identifier) @struct.name) @struct
        (enum_item name: (type_identifier) @enum.name) @enum
        (trait_item name: (type_identifier) @interface.name) @interface
        (type_item name: (type_identifier) @type.name) @type
        (use_declaration) @import
        (mod_item name: (identifier) @module.name) @module
    `)
}

// setupCpp serves C, C++, and their header extensions. NewBackend registers
// it under both the "c" and the "cpp" language ids the classifier assigns;
// each id is its own lazily initialized entry backed by the C++ grammar.
func setupCpp() *grammarEntry {
	return newGrammar(tree_sitter_cpp.Language(), `
        (function_definition declarator: (function_declarator declarator: (identifier) @function.name)) @function
        (class_specifier name: (type_identifier) @class.name) @class
        (struct_specifier name: (type_identifier) @struct.name) @struct
        (enum_specifier name: (type_identifier) @enum.name) @enum
        (namespace_definition) @namespace
        (preproc_include) @import
        (using_declaration) @import
    `)
}

func setupJava() *grammarEntry {
	return newGrammar(tree_sitter_java.Language(), `
        (method_declaration name: (identifier) @method.name) @method
        (constructor_declaration name: (identifier) @constructor.name) @constructor
        (class_declaration name: (identifier) @class.name) @class
        (record_declaration name: (identifier) @class.name) @class
        (interface_declaration name: (identifier) @interface.name) @interface
        (enum_declaration name: (identifier) @enum.name) @enum
        (field_declaration declarator: (variable_declarator name: (identifier) @field.name)) @field
        (import_declaration) @import
        (package_declaration) @package
        (annotation_type_declaration name: (identifier) @annotation.name) @annotation
    `)
}

func setupCSharp() *grammarEntry {
	return newGrammar(tree_sitter_csharp.Language(), `
        (method_declaration name: (identifier) @method.name) @method
        (constructor_declaration name: (identifier) @constructor.name) @constructor
        (class_declaration name: (identifier) @class.name) @class
        (interface_declaration name: (identifier) @interface.name) @interface
        (struct_declaration name: (identifier) @struct.name) @struct
        (record_declaration name: (identifier) @record.name) @record
        (enum_declaration name: (identifier) @enum.name) @enum
        (property_declaration name: (identifier) @property.name) @property
        (field_declaration
            (variable_declaration
                (variable_declarator (identifier) @field.name))) @field
        (using_directive (qualified_name) @using.name) @using
        (using_directive (identifier) @using.name) @using
        (namespace_declaration name: (qualified_name) @namespace.name) @namespace
        (namespace_declaration name: (identifier) @namespace.name) @namespace
        (delegate_declaration name: (identifier) @delegate.name) @delegate
        (event_field_declaration
            (variable_declaration
                (variable_declarator (identifier) @event.name))) @event
    `)
}

func setupZig() *grammarEntry {
	return newGrammar(tree_sitter_zig.Language(), `
        (function_declaration (identifier) @function.name) @function
        (variable_declaration
          (identifier) @struct.name
          (struct_declaration) @struct)
        (variable_declaration
          (identifier) @struct.name
          (union_declaration) @struct)
    `)
}

func setupPHP() *grammarEntry {
	return newGrammar(tree_sitter_php.LanguagePHP(), `
        (class_declaration name: (name) @class.name) @class
        (interface_declaration name: (name) @interface.name) @interface
        (trait_declaration name: (name) @trait.name) @trait
        (enum_declaration name: (name) @enum.name) @enum
        (function_definition name: (name) @function.name) @function
        (method_declaration name: (name) @method.name) @method
        (namespace_definition name: (namespace_name) @namespace.name) @namespace
        (namespace_use_declaration) @import
        (property_declaration) @property
        (const_declaration) @constant
    `)
}
