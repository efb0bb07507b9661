// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
)

// TreeSitterExtractor derives imports, exports and declarations from a
// tree-sitter syntax tree.
//
// # Description
//
// Violations always come from the wrapped LineExtractor, which runs first.
// For TypeScript, JavaScript and Python the structural lists are then
// replaced with the AST-derived ones, which see multi-line imports and
// ignore matches inside strings and comments. Other languages, parse
// failures and cancelled contexts keep the line-derived metadata.
//
// # Thread Safety
//
// Safe for concurrent use. A new parser is created per call.
type TreeSitterExtractor struct {
	lines  *LineExtractor
	logger *slog.Logger
}

// NewTreeSitterExtractor wraps lines. A nil lines uses NewLineExtractor().
func NewTreeSitterExtractor(lines *LineExtractor, logger *slog.Logger) *TreeSitterExtractor {
	if lines == nil {
		lines = NewLineExtractor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TreeSitterExtractor{lines: lines, logger: logger}
}

// Extract implements Extractor.
func (x *TreeSitterExtractor) Extract(ctx context.Context, content string, lang model.Language) Result {
	res := x.lines.Extract(ctx, content, lang)

	grammar := grammarFor(lang, content)
	if grammar == nil {
		return res
	}

	src := []byte(content)
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		x.logger.Debug("tree-sitter parse failed, keeping line metadata",
			slog.String("language", string(lang)),
			slog.String("error", err.Error()),
		)
		return res
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return res
	}

	var s astSummary
	if lang == model.LanguagePython {
		s.walkPython(root, src)
	} else {
		s.walkScript(root, src)
	}

	res.Metadata.Imports = s.imports
	res.Metadata.Exports = s.exports
	res.Metadata.Functions = s.functions
	res.Metadata.ObservabilityGap = ObservabilityGap(len(s.functions), content)
	return res
}

func grammarFor(lang model.Language, content string) *sitter.Language {
	switch lang {
	case model.LanguageTypeScript:
		if IsUIContent(content) || strings.Contains(content, "/>") {
			return tsx.GetLanguage()
		}
		return typescript.GetLanguage()
	case model.LanguageJavaScript:
		return javascript.GetLanguage()
	case model.LanguagePython:
		return python.GetLanguage()
	default:
		return nil
	}
}

type astSummary struct {
	imports   []model.Import
	exports   []string
	functions []model.Function
}

func (s *astSummary) addImport(source string) {
	if source != "" {
		s.imports = append(s.imports, model.Import{Source: source})
	}
}

func (s *astSummary) addFunction(node *sitter.Node, src []byte) {
	if node == nil {
		return
	}
	name := node.Content(src)
	if name == "" {
		return
	}
	if _, reserved := reservedNames[name]; reserved {
		return
	}
	s.functions = append(s.functions, model.Function{
		Name: name,
		Line: int(node.StartPoint().Row) + 1,
	})
}

func (s *astSummary) walkScript(root *sitter.Node, src []byte) {
	s.imports = []model.Import{}
	s.exports = []string{}
	s.functions = []model.Function{}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "import_statement":
			s.addImport(stringContent(node.ChildByFieldName("source"), src))
		case "export_statement":
			s.exports = append(s.exports, exportText(firstLine(node.Content(src))))
			if from := node.ChildByFieldName("source"); from != nil {
				s.addImport(stringContent(from, src))
			}
			if decl := node.ChildByFieldName("declaration"); decl != nil {
				s.scriptDeclaration(decl, src)
			}
		case "expression_statement":
			s.requireCalls(node, src)
		default:
			s.scriptDeclaration(node, src)
		}
	}
}

func (s *astSummary) scriptDeclaration(node *sitter.Node, src []byte) {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration",
		"class_declaration", "abstract_class_declaration":
		s.addFunction(node.ChildByFieldName("name"), src)
	case "lexical_declaration", "variable_declaration":
		for j := 0; j < int(node.NamedChildCount()); j++ {
			decl := node.NamedChild(j)
			if decl.Type() != "variable_declarator" {
				continue
			}
			s.addFunction(decl.ChildByFieldName("name"), src)
			s.requireCalls(decl, src)
		}
	}
}

// requireCalls records require("x") and import("x") calls below node.
func (s *astSummary) requireCalls(node *sitter.Node, src []byte) {
	if node == nil {
		return
	}
	if node.Type() == "call_expression" {
		fn := node.ChildByFieldName("function")
		if fn != nil && (fn.Content(src) == "require" || fn.Type() == "import") {
			if args := node.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
				s.addImport(stringContent(args.NamedChild(0), src))
			}
			return
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		s.requireCalls(node.NamedChild(i), src)
	}
}

func (s *astSummary) walkPython(root *sitter.Node, src []byte) {
	s.imports = []model.Import{}
	s.exports = []string{}
	s.functions = []model.Function{}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		s.pythonStatement(root.NamedChild(i), src)
	}
}

func (s *astSummary) pythonStatement(node *sitter.Node, src []byte) {
	switch node.Type() {
	case "import_statement":
		for j := 0; j < int(node.NamedChildCount()); j++ {
			child := node.NamedChild(j)
			switch child.Type() {
			case "dotted_name":
				s.addImport(child.Content(src))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					s.addImport(name.Content(src))
				}
			}
		}
	case "import_from_statement":
		if mod := node.ChildByFieldName("module_name"); mod != nil {
			s.addImport(mod.Content(src))
		}
	case "function_definition", "class_definition":
		s.addFunction(node.ChildByFieldName("name"), src)
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil {
			s.pythonStatement(def, src)
		}
	}
}

// stringContent returns the unquoted text of a string literal node.
func stringContent(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "string_fragment" {
			return child.Content(src)
		}
	}
	return strings.Trim(node.Content(src), "\"'`")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
