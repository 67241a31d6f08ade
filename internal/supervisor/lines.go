package supervisor

import (
	"bufio"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const maxOutputLineBytes = 256 * 1024

// forwardLines 逐行读取 r，把非空行交给 emit，直到 EOF 或读错误。
// 超长行会被截断；终端控制序列被剥离，避免破坏日志面板的宽度计算。
func forwardLines(r io.Reader, emit func(string)) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	var sb strings.Builder
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if sb.Len()+len(chunk) <= maxOutputLineBytes {
			sb.Write(chunk)
		}
		if err == nil && isPrefix {
			continue
		}
		if line := cleanLine(sb.String()); line != "" {
			emit(line)
		}
		sb.Reset()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func cleanLine(line string) string {
	line = strings.TrimRight(line, "\r")
	if strings.ContainsRune(line, '\x1b') {
		line = ansi.Strip(line)
	}
	if strings.TrimSpace(line) == "" {
		return ""
	}
	return line
}
