package source

import (
	"bytes"
	"fmt"
	"path/filepath"

	"fortio.org/safecast"
)

// normalizeCRLF заменяет все \r\n на \n, не трогая одиночные \r.
// Возвращает новый слайс и отсортированные смещения (в нормализованных
// координатах) каждого \n, который в оригинале был парой \r\n — по ним
// спаны отображаются обратно на исходные байты.
func normalizeCRLF(content []byte) ([]byte, []uint32) {
	// Быстрый путь: если нет \r\n, возвращаем как есть.
	if !bytes.Contains(content, []byte("\r\n")) {
		return content, nil
	}

	out := make([]byte, 0, len(content))
	var converted []uint32

	i := 0
	for i < len(content) {
		if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			off, err := safecast.Conv[uint32](len(out))
			if err != nil {
				panic(fmt.Errorf("offset overflow: %w", err))
			}
			converted = append(converted, off)
			out = append(out, '\n')
			i += 2
		} else {
			out = append(out, content[i])
			i++
		}
	}
	return out, converted
}

func removeBOM(content []byte) ([]byte, bool) {
	if len(content) < 3 {
		return content, false
	}

	if content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:], true
	}

	return content, false
}

func buildLineIndex(content []byte) []uint32 {
	out := make([]uint32, 0, len(content))
	for i, b := range content {
		if b == '\n' {
			out = append(out, uint32(i))
		}
	}
	return out
}

func toLineCol(lineIdx []uint32, off uint32) LineCol {
	// Если LineIdx пустой, то весь файл — одна строка.
	if len(lineIdx) == 0 {
		return LineCol{Line: 1, Col: off + 1}
	}

	// бинпоиск: находим наибольший lineIdx[i] < off
	// (смещение, равное позиции \n, принадлежит строке, которую \n завершает)
	lo, hi := 0, len(lineIdx)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		if lineIdx[mid] < off {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	if hi < 0 {
		return LineCol{Line: 1, Col: off + 1}
	}

	line := uint32(hi + 1)           // индекс строки (0-based)
	startOff := lineIdx[line-1] + 1 // начало строки — сразу после \n предыдущей

	return LineCol{Line: line + 1, Col: off - startOff + 1}
}

func normalizePath(p string) string {
	// единый вид в кроссплатформенных дифах
	return filepath.ToSlash(filepath.Clean(p))
}

// AbsolutePath returns the absolute form of path.
func AbsolutePath(path string) (string, error) {
	return filepath.Abs(path)
}

// RelativePath returns path relative to baseDir.
func RelativePath(path, baseDir string) (string, error) {
	return filepath.Rel(baseDir, path)
}

// BaseName returns the final path element.
func BaseName(path string) string {
	return filepath.Base(path)
}
