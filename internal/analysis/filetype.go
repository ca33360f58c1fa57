package analysis

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"
)

// filetype 库建议读取的文件头长度
const headerSize = 262

// Result 文件类型标注. 只作为元数据交给上层, 不做任何处置决定.
type Result struct {
	ContentType string // MIME from magic bytes, "" when unknown
	RealExt     string // extension implied by the header
	DeclaredExt string // extension from the file name
	Masquerade  bool   // header and name disagree beyond known aliases
}

// TypeInspector compares magic bytes against the declared extension.
type TypeInspector struct {
	aliases map[string]map[string]bool
}

func NewTypeInspector() *TypeInspector {
	return &TypeInspector{aliases: defaultAliases()}
}

// defaultAliases 合法的"表里不一": key 是文件头类型, value 是允许的后缀
func defaultAliases() map[string]map[string]bool {
	m := make(map[string]map[string]bool)
	allow := func(real string, exts ...string) {
		set, ok := m[real]
		if !ok {
			set = map[string]bool{real: true}
			m[real] = set
		}
		for _, ext := range exts {
			set[ext] = true
		}
	}

	// office / java / android 包本质都是 zip
	allow("zip",
		"docx", "docm", "dotx", "xlsx", "xlsm", "xltx", "pptx", "pptm", "potx",
		"jar", "war", "ear", "apk", "aab", "odt", "ods", "odp", "epub", "crx", "whl", "nupkg",
	)
	allow("xml", "svg", "html", "htm", "kml", "plist", "config")
	allow("mp4", "m4v", "m4a", "mov", "qt")
	allow("mov", "qt", "mp4")
	allow("ogg", "ogv", "oga", "opus", "spx")
	allow("jpg", "jpeg", "jpe", "jfif")
	allow("tif", "tiff")
	allow("exe", "dll", "sys", "scr", "cpl", "ocx")
	allow("gz", "gzip", "tgz")
	return m
}

// Inspect reads the header of path and annotates it.
func (t *TypeInspector) Inspect(path string) (Result, error) {
	res := Result{
		DeclaredExt: strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
	}

	f, err := os.Open(path)
	if err != nil {
		return res, errors.Wrap(err, "open for inspection")
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return res, errors.Wrap(err, "read header")
	}
	if n == 0 {
		// 空文件没有 magic bytes
		return res, nil
	}

	kind, _ := filetype.Match(head[:n])
	if kind == filetype.Unknown {
		// 文本类文件 (txt, md, json ...) 大多落在这里
		return res, nil
	}

	res.ContentType = kind.MIME.Value
	res.RealExt = kind.Extension
	res.Masquerade = t.mismatch(res.RealExt, res.DeclaredExt)
	return res, nil
}

func (t *TypeInspector) mismatch(real, declared string) bool {
	if real == declared {
		return false
	}
	if declared == "" {
		// 无后缀的可执行文件仍然可疑, 其余放行
		return isExecutable(real)
	}
	return !t.aliases[real][declared]
}

func isExecutable(ext string) bool {
	switch ext {
	case "exe", "elf", "dll", "dex":
		return true
	}
	return false
}
