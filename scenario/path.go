package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Path is either a file system path or a MongoDB {db}.{coll} pair.
type Path struct {
	File string
	DB   string
	Coll string
}

func NewPath(filePathOrColl string) (*Path, error) {
	s := strings.TrimSpace(filePathOrColl)
	if s == "" {
		return nil, nil
	}
	// 已存在的文件，或带有目录/yaml后缀的输出路径
	if _, err := os.Stat(s); err == nil {
		return &Path{File: s}, nil
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".yaml", ".yml":
		return &Path{File: s}, nil
	}
	if strings.ContainsRune(s, os.PathSeparator) {
		return &Path{File: s}, nil
	}
	splitted := strings.Split(s, ".")
	if len(splitted) != 2 || splitted[0] == "" || splitted[1] == "" {
		return nil, fmt.Errorf("dbDotColl is invalid: %s", s)
	}
	return &Path{DB: splitted[0], Coll: splitted[1]}, nil
}

func (p *Path) IsFile() bool {
	return p.File != ""
}

func (p *Path) String() string {
	if p.IsFile() {
		return p.File
	}
	return p.DB + "." + p.Coll
}
