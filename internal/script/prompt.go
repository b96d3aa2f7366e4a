package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// partSeparator 分段之间的分隔符，上下文拼接与导出共用
const partSeparator = "\n\n---\n\n"

// contextParts 生成新分段时携带的前文分段数
const contextParts = 2

var digitsPattern = regexp.MustCompile(`\d+`)

// TargetWordCount 从 "~900 words" 这类字数目标中取出数字，无法解析时返回默认值
func TargetWordCount(wordTarget string) int {
	match := digitsPattern.FindString(wordTarget)
	if match == "" {
		return DefaultWordTarget
	}
	n, err := strconv.Atoi(match)
	if err != nil || n <= 0 {
		return DefaultWordTarget
	}
	return n
}

// PreviousContext 取紧邻 partIndex 之前的最多两个分段作为上下文
func PreviousContext(parts []string, partIndex int) string {
	end := partIndex
	if end > len(parts) {
		end = len(parts)
	}
	start := end - contextParts
	if start < 0 {
		start = 0
	}
	if start >= end {
		return ""
	}
	return strings.Join(parts[start:end], partSeparator)
}

func buildOutlinePrompt(title string) string {
	return fmt.Sprintf(`Write a detailed outline in ENGLISH for a documentary about: "%s".
The outline must have between 8 and 12 sections.
Give every section a compelling title, an approximate word target and a one or two sentence description of what it covers.
Each word target must fall between 700 and 1000 words.
Follow this format exactly and separate sections with "---":

[Section 1 Title]
Word Target: ~800 words
Description: [What section 1 covers]
---
[Section 2 Title]
Word Target: ~900 words
Description: [What section 2 covers]
---
...continue for every section.`, title)
}

const scriptSystemPrompt = `You are a professional documentary scriptwriter with a cinematic, investigative voice. Compared with typical channels you go deeper, keep the pacing tight and never compromise on accuracy. You will receive a topic, the full outline and the part you must write.

**SCRIPT RULES - FOLLOW THEM EXACTLY:**

1. **Language:** Write the whole script in **ENGLISH**.

2. **Paragraph length (hard rule):** Every narration paragraph must contain between 22 and 24 words. No exceptions. Check every paragraph before you answer.

3. **Paragraph layout:** Do not number paragraphs. Separate paragraphs with one blank line.

4. **Header and footer:** Start with a header line and finish with a footer line, with nothing before or after them.
   * Header: ` + "`[SECTION TITLE] – Part X (Word count/Paragraph count)`" + `
   * Footer: ` + "`Word count: [X] | Paragraphs: [Y]`" + `
   Fill in the real word and paragraph counts.

5. **Accuracy and flow:** Keep every claim factual. Each part must lead naturally into the next without repeating earlier material.`

const openingHookInstruction = `

**PART 1 ONLY:** This part opens the documentary. Start with a strong hook; the first paragraphs must grab the viewer immediately and make them want to keep watching.`

func buildScriptPrompts(req PartRequest) (system, user string) {
	system = scriptSystemPrompt
	if req.PartIndex == 0 {
		system += openingHookInstruction
	}

	section := req.Outline[req.PartIndex]

	var outline strings.Builder
	for i, s := range req.Outline {
		if i > 0 {
			outline.WriteString("\n")
		}
		fmt.Fprintf(&outline, "Part %d: %s (%s) - %s", i+1, s.Title, s.WordTarget, s.Description)
	}

	previous := PreviousContext(req.Parts, req.PartIndex)
	if previous == "" {
		previous = "This is the first part, there is no earlier context."
	}

	user = fmt.Sprintf(`**TOPIC:** "%s"

**FULL OUTLINE:**
%s

**PREVIOUS PARTS:**
%s

**YOUR TASK:**
Write **Part %d: %s**.
- What this part covers: "%s".
- Word target: about %d words.

Write the script for this part now, following every rule from the instructions.`,
		req.Title, outline.String(), previous, req.PartIndex+1, section.Title, section.Description, TargetWordCount(section.WordTarget))
	return system, user
}
