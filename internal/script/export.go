package script

import "strings"

// JoinParts 合并全部分段为完整脚本
func JoinParts(parts []string) string {
	return strings.Join(parts, partSeparator)
}

// ExportFilename 导出文件名，标题中的空格替换为下划线
func ExportFilename(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "untitled"
	}
	return strings.ReplaceAll(title, " ", "_") + "_script.txt"
}
