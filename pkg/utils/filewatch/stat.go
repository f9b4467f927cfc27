package filewatch

import "os"

func isDir(p string) bool {
	s, err := os.Stat(p)
	return err == nil && s.IsDir()
}
