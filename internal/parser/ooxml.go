package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// xnode is a namespace-free element tree of an OOXML part.
type xnode struct {
	name     string
	attrs    map[string]string
	children []*xnode
	text     strings.Builder
}

func (n *xnode) attr(name string) string { return n.attrs[name] }

// child returns the first direct child with the local name.
func (n *xnode) child(name string) *xnode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// find returns the first descendant with the local name.
func (n *xnode) find(name string) *xnode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if d := c.find(name); d != nil {
			return d
		}
	}
	return nil
}

// val returns the w:val of the named property child, and whether it exists.
func (n *xnode) val(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	c := n.child(name)
	if c == nil {
		return "", false
	}
	return c.attr("val"), true
}

// on reports a toggle property such as w:b, honouring val="0"/"false".
func (n *xnode) on(name string) bool {
	v, ok := n.val(name)
	if !ok {
		return false
	}
	return v != "0" && v != "false" && v != "none"
}

func parseXML(data []byte) (*xnode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &xnode{name: "#root"}
	stack := []*xnode{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xnode{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
			}
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			top.text.Write(t)
		}
	}
	return root, nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("%s: %w", name, errMissingPart)
}

var errMissingPart = errors.New("part not found")

// parseRelationships maps relationship ids to their targets.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	root, err := parseXML(data)
	if err != nil {
		return out
	}
	for _, r := range root.find("Relationships").childrenNamed("Relationship") {
		if id, target := r.attr("Id"), r.attr("Target"); id != "" && target != "" {
			out[id] = target
		}
	}
	return out
}

func (n *xnode) childrenNamed(name string) []*xnode {
	if n == nil {
		return nil
	}
	var out []*xnode
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// partPath resolves a relationship target relative to word/.
func partPath(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join("word", target))
}

// parseStyles maps style ids to their display names.
func parseStyles(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	root, err := parseXML(data)
	if err != nil {
		return out
	}
	for _, s := range root.find("styles").childrenNamed("style") {
		id := s.attr("styleId")
		if id == "" {
			continue
		}
		if name, ok := s.val("name"); ok {
			out[id] = name
		}
	}
	return out
}

var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".svg":  "image/svg+xml",
}
