package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	emuPerPixel = 9525
	// maxWidthPx keeps inline images inside the text column.
	maxWidthPx = 600
)

var imageExt = map[string]string{
	"png":  "png",
	"jpeg": "jpeg",
	"gif":  "gif",
}

// decodeDataURI extracts the payload of a base64 data: URI.
func decodeDataURI(src string) (mime string, data []byte, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(src), "data:")
	if !found {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(payload), ""))
	if err != nil {
		return "", nil, false
	}
	return strings.TrimSuffix(meta, ";base64"), data, true
}

// image embeds a data URI image as an inline drawing. Other sources are
// dropped.
func (w *writer) image(n *html.Node) string {
	_, data, ok := decodeDataURI(attr(n, "src"))
	if !ok {
		return ""
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	ext := imageExt[format]
	if ext == "" {
		return ""
	}
	width, height := cfg.Width, cfg.Height
	if v, err := strconv.Atoi(attr(n, "width")); err == nil && v > 0 {
		if attr(n, "height") == "" && width > 0 {
			height = height * v / width
		}
		width = v
	}
	if v, err := strconv.Atoi(attr(n, "height")); err == nil && v > 0 {
		height = v
	}
	if width > maxWidthPx {
		height = height * maxWidthPx / width
		width = maxWidthPx
	}
	if width <= 0 || height <= 0 {
		return ""
	}

	w.nextID++
	id := w.nextID
	name := fmt.Sprintf("media/image%d.%s", id, ext)
	relID := fmt.Sprintf("rId%d", len(w.rels)+1)
	w.rels = append(w.rels, relationship{id: relID, typ: relImage, target: name})
	w.media = append(w.media, mediaPart{name: name, data: data})

	cx, cy := width*emuPerPixel, height*emuPerPixel
	alt := escape(attr(n, "alt"))
	return fmt.Sprintf(`<w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%[1]d" cy="%[2]d"/><wp:docPr id="%[3]d" name="Picture %[3]d" descr="%[4]s"/>`+
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:pic>`+
		`<pic:nvPicPr><pic:cNvPr id="%[3]d" name="image%[3]d.%[5]s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%[6]s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%[1]d" cy="%[2]d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`,
		cx, cy, id, alt, ext, relID)
}
