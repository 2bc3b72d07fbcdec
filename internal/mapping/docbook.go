package mapping

import "github.com/bonzini/db4sphinx/internal/docmodel"

// DocBook5Namespace is the element namespace of DocBook 5 documents.
// DocBook 4 documents carry no namespace at all.
const DocBook5Namespace = "http://docbook.org/ns/docbook"

// DocBook returns the rule table for the DocBook vocabulary, covering the
// subset produced by makeinfo and kernel-doc chunking plus assemblies.
// Everything else degrades to passthrough.
func DocBook() *Table {
	t := NewTable("", DocBook5Namespace)

	section := func(level int) Rule {
		return Rule{Action: ActionSection, Kind: docmodel.KindSection, Level: level}
	}
	block := func(kind docmodel.Kind) Rule {
		return Rule{Action: ActionBlock, Kind: kind}
	}
	inline := func(role string) Rule {
		return Rule{Action: ActionInline, Kind: docmodel.KindInline, Role: role}
	}
	admonition := func(flavor string) Rule {
		return Rule{Action: ActionBlock, Kind: docmodel.KindAdmonition, Flavor: flavor}
	}

	// Top-level and section elements. Books, articles and topics open a
	// level-0 section just like chapters do.
	for _, tag := range []string{"book", "article", "chapter", "preface", "appendix", "part"} {
		t.Register(tag, section(0))
	}
	t.Register("sect1", section(1))
	t.Register("sect2", section(2))
	t.Register("sect3", section(3))
	t.Register("sect4", section(4))
	t.Register("sect5", section(5))
	t.Register("section", section(LevelRelative))
	t.Register("topic", section(LevelSame))
	t.Register("refentry", section(LevelRelative))
	t.Register("simplesect", Rule{Action: ActionTransparent})

	title := Rule{Action: ActionTitle, Kind: docmodel.KindTitle}
	t.Register("title", title)
	for _, ancestor := range []string{"table", "informaltable", "figure", "equation"} {
		t.RegisterContext("title", ancestor,
			Rule{Action: ActionTitle, Kind: docmodel.KindTitle, Role: docmodel.RoleCaption})
	}
	// Titled block elements shield their titles from an enclosing table's
	// caption context: the innermost registered ancestor decides, so a
	// section nested in a table cell still gets a plain title.
	for _, ancestor := range []string{
		"book", "article", "chapter", "preface", "appendix", "part",
		"sect1", "sect2", "sect3", "sect4", "sect5", "section", "topic",
		"refentry", "simplesect", "formalpara", "blockquote", "sidebar",
		"itemizedlist", "orderedlist", "variablelist",
	} {
		t.RegisterContext("title", ancestor, title)
	}

	// Block elements.
	t.Register("para", block(docmodel.KindParagraph))
	t.Register("simpara", block(docmodel.KindParagraph))
	t.Register("formalpara", block(docmodel.KindParagraph))
	t.Register("blockquote", block(docmodel.KindQuote))
	t.Register("epigraph", block(docmodel.KindQuote))
	t.Register("sidebar", block(docmodel.KindQuote))
	t.Register("note", admonition("note"))
	t.Register("caution", admonition("caution"))
	t.Register("important", admonition("important"))
	t.Register("tip", admonition("tip"))
	t.Register("warning", admonition("warning"))

	// Verbatim blocks keep their whitespace untouched.
	t.Register("programlisting", block(docmodel.KindVerbatim))
	t.Register("screen", block(docmodel.KindVerbatim))
	t.Register("literallayout", block(docmodel.KindVerbatim))

	// Lists.
	t.Register("itemizedlist", Rule{Action: ActionBlock, Kind: docmodel.KindList})
	t.Register("orderedlist", Rule{Action: ActionBlock, Kind: docmodel.KindList, Ordered: true})
	t.Register("listitem", block(docmodel.KindListItem))
	t.Register("variablelist", Rule{Action: ActionBlock, Kind: docmodel.KindList, Definition: true})
	t.Register("varlistentry", block(docmodel.KindListItem))
	t.Register("term", block(docmodel.KindTerm))
	t.RegisterContext("listitem", "varlistentry", block(docmodel.KindDefinition))
	t.Register("glosslist", Rule{Action: ActionBlock, Kind: docmodel.KindList, Definition: true})
	t.Register("glossentry", block(docmodel.KindListItem))
	t.Register("glossterm", block(docmodel.KindTerm))
	t.Register("glossdef", block(docmodel.KindDefinition))

	// Tables. Structural wrappers contribute no node of their own.
	t.Register("table", block(docmodel.KindTable))
	t.Register("informaltable", block(docmodel.KindTable))
	t.Register("tgroup", Rule{Action: ActionTransparent})
	t.Register("thead", Rule{Action: ActionTransparent})
	t.Register("tbody", Rule{Action: ActionTransparent})
	t.Register("tfoot", Rule{Action: ActionTransparent})
	t.Register("row", block(docmodel.KindTableRow))
	t.Register("entry", block(docmodel.KindTableCell))

	// Figures and media.
	t.Register("figure", block(docmodel.KindFigure))
	t.Register("informalfigure", block(docmodel.KindFigure))
	t.Register("mediaobject", Rule{Action: ActionTransparent})
	t.Register("inlinemediaobject", Rule{Action: ActionTransparent})
	t.Register("imageobject", Rule{Action: ActionTransparent})
	t.Register("textobject", Rule{Action: ActionTransparent})

	// General inline markup.
	t.Register("emphasis", inline(docmodel.RoleEmphasis))
	t.Register("phrase", inline(docmodel.RoleEmphasis))
	t.Register("citetitle", inline(docmodel.RoleEmphasis))
	t.Register("replaceable", inline(docmodel.RoleEmphasis))
	t.Register("firstterm", inline(docmodel.RoleDefinition))
	t.Register("literal", inline(docmodel.RoleLiteral))
	t.Register("code", inline(docmodel.RoleLiteral))
	t.Register("userinput", inline(docmodel.RoleKeyboard))
	t.Register("systemitem", inline(docmodel.RoleLiteral))
	t.Register("prompt", inline(docmodel.RoleLiteral))
	t.Register("constant", inline(docmodel.RoleLiteral))
	t.Register("varname", inline(docmodel.RoleLiteral))
	t.Register("function", inline(docmodel.RoleLiteral))
	t.Register("structname", inline(docmodel.RoleLiteral))
	t.Register("structfield", inline(docmodel.RoleLiteral))
	t.Register("type", inline(docmodel.RoleLiteral))
	t.Register("filename", inline(docmodel.RoleFile))
	t.Register("command", inline(docmodel.RoleCommand))
	t.Register("option", inline(docmodel.RoleOption))
	t.Register("envar", inline(docmodel.RoleEnvVar))
	t.Register("keycap", inline(docmodel.RoleKeyboard))
	t.Register("application", inline(docmodel.RoleProgram))
	t.Register("subscript", inline(docmodel.RoleSubscript))
	t.Register("superscript", inline(docmodel.RoleSuperscript))
	t.Register("quote", inline("quote"))

	// Parameters are emphasized inside prototypes, literal elsewhere.
	t.Register("parameter", inline(docmodel.RoleLiteral))
	t.RegisterContext("parameter", "paramdef", inline(docmodel.RoleEmphasis))

	// Equations. mathphrase is inline only inside inlineequation.
	t.Register("inlineequation", Rule{Action: ActionTransparent})
	t.Register("equation", Rule{Action: ActionTransparent})
	t.Register("informalexample", Rule{Action: ActionTransparent})
	t.Register("mathphrase",
		Rule{Action: ActionVerbatim, Kind: docmodel.KindVerbatim, Role: docmodel.RoleMath})
	t.RegisterContext("mathphrase", "inlineequation", inline(docmodel.RoleMath))

	// Links and anchors.
	t.Register("xref", Rule{Action: ActionXref, Kind: docmodel.KindCrossReference})
	t.Register("link", Rule{Action: ActionLink})
	t.Register("ulink", Rule{Action: ActionLink})
	t.Register("anchor", Rule{Action: ActionAnchor})

	// Metadata and index markers carry nothing into the output tree.
	t.Register("info", Rule{Action: ActionSkip})
	t.Register("refentryinfo", Rule{Action: ActionSkip})
	t.Register("refmeta", Rule{Action: ActionSkip})
	t.Register("index", Rule{Action: ActionSkip})
	t.Register("indexterm", Rule{Action: ActionSkip})

	return t
}
