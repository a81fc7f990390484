package media

import (
	"path/filepath"
	"strings"
)

// The path helpers are pure functions of the file name and the config. The
// empty name is the absent value: each helper returns ("", false) for it.

// WebPath returns UploadDir/[shard path/]fileName, the public path fragment.
func (s *Store) WebPath(fileName string) (string, bool) {
	if fileName == "" {
		return "", false
	}
	if s.cfg.ShardDepth > 0 {
		if sub, _ := s.SubFolderPath(fileName); sub != "" {
			return s.cfg.UploadDir + "/" + sub + "/" + fileName, true
		}
	}
	return s.cfg.UploadDir + "/" + fileName, true
}

// SubFolderPath returns the slash-separated shard directories for fileName.
// With a zero shard width it is the empty string.
func (s *Store) SubFolderPath(fileName string) (string, bool) {
	if fileName == "" {
		return "", false
	}
	return strings.Join(s.shards(fileName), "/"), true
}

// AbsoluteFolderPath returns the directory fileName is stored in.
func (s *Store) AbsoluteFolderPath(fileName string) (string, bool) {
	sub, ok := s.SubFolderPath(fileName)
	if !ok {
		return "", false
	}
	return filepath.Join(s.root, filepath.FromSlash(sub)), true
}

// AbsoluteFilePath returns where fileName is stored.
func (s *Store) AbsoluteFilePath(fileName string) (string, bool) {
	dir, ok := s.AbsoluteFolderPath(fileName)
	if !ok {
		return "", false
	}
	return filepath.Join(dir, fileName), true
}

// shards splits the digest part of fileName into ShardWidth-sized chunks and
// keeps the first ShardDepth of them. Directory creation and path resolution
// both go through here so they always agree.
func (s *Store) shards(fileName string) []string {
	width, depth := s.cfg.ShardWidth, s.cfg.ShardDepth
	if width <= 0 || depth <= 0 {
		return nil
	}
	chunks := split(stem(fileName), width)
	if len(chunks) > depth {
		chunks = chunks[:depth]
	}
	return chunks
}

// stem is fileName without its final extension.
func stem(fileName string) string {
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 {
		return fileName[:i]
	}
	return fileName
}

func split(s string, width int) []string {
	out := make([]string, 0, (len(s)+width-1)/width)
	for len(s) > width {
		out = append(out, s[:width])
		s = s[width:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// validName rejects names that would resolve outside their shard directory,
// and hidden names, which belong to staging and spool files.
func validName(fileName string) bool {
	if fileName == "" || strings.HasPrefix(fileName, ".") {
		return false
	}
	return !strings.ContainsAny(fileName, `/\`)
}
