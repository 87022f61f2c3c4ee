package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// keywordSection switches seed-file parsing from URLs to exclude keywords.
const keywordSection = "[exclude_keywords]"

// LoadSeedFile reads seed URLs from a line-oriented file. Blank lines and
// lines starting with '#' are ignored. A literal "[exclude_keywords]" line
// switches all subsequent lines from seed URLs to exclude keywords.
func LoadSeedFile(path string) (urls []string, keywords []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	inKeywords := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == keywordSection {
			inKeywords = true
			continue
		}
		if inKeywords {
			keywords = append(keywords, line)
		} else {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read seed file: %w", err)
	}
	if len(urls) == 0 {
		return nil, nil, fmt.Errorf("no valid URLs found in %s", path)
	}
	return urls, keywords, nil
}
