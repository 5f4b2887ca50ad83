package ui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"tshard/internal/config"
	"tshard/internal/discovery"
	"tshard/internal/domain"
)

// Formatter formats and displays output
type Formatter struct {
	config *config.Config
	parser *discovery.Parser
}

// NewFormatter creates a new Formatter
func NewFormatter(cfg *config.Config, parser *discovery.Parser) *Formatter {
	return &Formatter{
		config: cfg,
		parser: parser,
	}
}

// PrintRunSummary displays the merged statistics of a sharded run
func (f *Formatter) PrintRunSummary(output *domain.TestResultsOutput) {
	meta := output.Meta

	// Print header
	fmt.Print("\n")
	color.Cyan("╔═══════════════════════════════════════════════════════════════╗")
	color.Cyan("║                     Sharded Run Statistics                    ║")
	color.Cyan("╚═══════════════════════════════════════════════════════════════╝\n")

	// Print table
	fmt.Println("┌─────────────────────────────────┬─────────────────────────────┐")

	// Total Test Files
	fmt.Printf("│ %-31s │ ", "Total Test Files")
	color.White("%-27d │\n", meta.TotalTestFiles)
	fmt.Println("├─────────────────────────────────┼─────────────────────────────┤")

	// Passed Test Files
	fmt.Printf("│ %-31s │ ", "Passed Test Files")
	color.Green("%-27d │\n", meta.PassedTestFiles)
	fmt.Println("├─────────────────────────────────┼─────────────────────────────┤")

	// Failed Test Files
	fmt.Printf("│ %-31s │ ", "Failed Test Files")
	color.Red("%-27d │\n", meta.FailedTestFiles)
	fmt.Println("├─────────────────────────────────┼─────────────────────────────┤")

	// Failed Test Cases
	fmt.Printf("│ %-31s │ ", "Failed Test Cases")
	color.Red("%-27d │\n", meta.FailedTestCases)
	fmt.Println("├─────────────────────────────────┼─────────────────────────────┤")

	// Duration
	fmt.Printf("│ %-31s │ ", "Duration")
	durationStr := fmt.Sprintf("%.2fs", meta.DurationSeconds)
	color.White("%-27s │\n", durationStr)
	fmt.Println("├─────────────────────────────────┼─────────────────────────────┤")

	// Shards
	fmt.Printf("│ %-31s │ ", "Shards")
	color.White("%-27d │\n", meta.Shards)
	fmt.Println("├─────────────────────────────────┼─────────────────────────────┤")

	// Strategy
	fmt.Printf("│ %-31s │ ", "Strategy")
	color.White("%-27s │\n", meta.Strategy)
	fmt.Println("├─────────────────────────────────┼─────────────────────────────┤")

	// Timestamp
	fmt.Printf("│ %-31s │ ", "Timestamp")
	color.White("%-27s │\n", meta.Timestamp)

	fmt.Println("└─────────────────────────────────┴─────────────────────────────┘")

	// Print summary line
	fmt.Println()
	if meta.FailedTestFiles == 0 {
		color.Green("✓ All tests passed!")
	} else {
		color.Red("✗ %d test file(s) failed with %d test case failure(s)", meta.FailedTestFiles, meta.FailedTestCases)
		fmt.Println()
		f.printFailedTestsTree(output.Details)
	}
}

// TreeNode represents a node in the file tree structure
type TreeNode struct {
	Name     string
	Children map[string]*TreeNode
	Failures []domain.TestFailure
	IsFile   bool
}

// printFailedTestsTree prints a tree structure of failed tests
func (f *Formatter) printFailedTestsTree(failures []domain.TestFailure) {
	if len(failures) == 0 {
		return
	}

	// Group failures by file path
	fileMap := make(map[string][]domain.TestFailure)
	for _, failure := range failures {
		fileMap[failure.FilePath] = append(fileMap[failure.FilePath], failure)
	}

	root := &TreeNode{
		Name:     "",
		Children: make(map[string]*TreeNode),
		IsFile:   false,
	}

	// Process each file
	for filePath, fileFailures := range fileMap {
		parts := strings.Split(strings.TrimPrefix(filePath, "./"), "/")
		current := root

		// Navigate/create tree nodes for each path part
		for i, part := range parts {
			if part == "" {
				continue
			}

			if current.Children[part] == nil {
				current.Children[part] = &TreeNode{
					Name:     part,
					Children: make(map[string]*TreeNode),
					IsFile:   i == len(parts)-1,
				}
			}

			current = current.Children[part]

			// If this is the file (last part), add failures
			if i == len(parts)-1 {
				current.Failures = fileFailures
			}
		}
	}

	// Print tree recursively
	f.printTreeNode(root, "", true, true)
}

func (f *Formatter) printTreeNode(node *TreeNode, prefix string, isLast bool, isRoot bool) {
	// Sort children for consistent output
	var keys []string
	for key := range node.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Print children
	for i, key := range keys {
		child := node.Children[key]
		isLastChild := i == len(keys)-1

		// Determine connector
		var connector string
		if isRoot {
			connector = ""
		} else if isLastChild {
			connector = prefix + "   |_"
		} else {
			connector = prefix + "  |_"
		}

		// Print child node
		if child.IsFile {
			color.Yellow("%s%s", connector, child.Name)
		} else {
			color.Cyan("%s%s", connector, child.Name)
		}

		// Print test cases if this is a file
		if child.IsFile && len(child.Failures) > 0 {
			for j, failure := range child.Failures {
				isLastCase := j == len(child.Failures)-1
				var casePrefix string
				if isLastChild {
					if isLastCase {
						casePrefix = strings.ReplaceAll(prefix, "|", " ") + "        |_"
					} else {
						casePrefix = prefix + "  |        |_"
					}
				} else {
					if isLastCase {
						casePrefix = prefix + "  |        |_"
					} else {
						casePrefix = prefix + "  |  |     |_"
					}
				}
				label := failure.TestName
				if failure.ShardIndex > 0 {
					label = fmt.Sprintf("%s [shard %d]", failure.TestName, failure.ShardIndex)
				}
				color.Red("%s%s", casePrefix, label)
			}
		}

		// Recursively print children
		var newPrefix string
		if isRoot {
			newPrefix = "  "
		} else if isLastChild {
			newPrefix = strings.ReplaceAll(prefix, "|", " ") + "  "
		} else {
			newPrefix = prefix + "  |"
		}
		f.printTreeNode(child, newPrefix, isLastChild, false)
	}
}

// PrintShardPlan displays which test files each shard would receive, with
// the estimated cost the assignment was balanced on
func (f *Formatter) PrintShardPlan(assignments [][]domain.Test, estimates []time.Duration) {
	for i, tests := range assignments {
		estimate := ""
		if i < len(estimates) && estimates[i] > 0 {
			estimate = fmt.Sprintf(", ~%.1fs", estimates[i].Seconds())
		}
		color.Cyan("Shard %d: %d file(s)%s", i+1, len(tests), estimate)

		for j, test := range tests {
			if j == len(tests)-1 {
				fmt.Printf("└── %s\n", test.FilePath)
			} else {
				fmt.Printf("├── %s\n", test.FilePath)
			}
		}
		if i < len(assignments)-1 {
			fmt.Println()
		}
	}
}

// PrintStatusTable displays the shared status table of a run in progress
func (f *Formatter) PrintStatusTable(records []domain.ShardRecord) {
	fmt.Println("┌───────┬───────────┬─────────┬──────────┬──────────┬──────────┐")
	fmt.Printf("│ %-5s │ %-9s │ %-7s │ %-8s │ %-8s │ %-8s │\n",
		"Shard", "Status", "PID", "Attempts", "Started", "Ended")
	fmt.Println("├───────┼───────────┼─────────┼──────────┼──────────┼──────────┤")

	var completed, running, failed, pending int
	for _, rec := range records {
		status := rec.Status
		if status == "" {
			status = domain.StatusPending
		}
		switch status {
		case domain.StatusCompleted:
			completed++
		case domain.StatusRunning:
			running++
		case domain.StatusFailed:
			failed++
		default:
			pending++
		}

		pid := "-"
		if rec.OwnerPID > 0 {
			pid = fmt.Sprintf("%d", rec.OwnerPID)
		}

		fmt.Printf("│ %-5d │ %s │ %-7s │ %-8d │ %-8s │ %-8s │\n",
			rec.ID,
			statusCell(status),
			pid,
			rec.Attempts,
			clockCell(rec.StartedAt),
			clockCell(rec.EndedAt))
	}
	fmt.Println("└───────┴───────────┴─────────┴──────────┴──────────┴──────────┘")

	fmt.Println()
	fmt.Printf("%s  %s  %s  %s\n",
		color.GreenString("%d completed", completed),
		color.CyanString("%d running", running),
		color.RedString("%d failed", failed),
		color.WhiteString("%d pending", pending))
}

func statusCell(status domain.ShardStatus) string {
	padded := fmt.Sprintf("%-9s", status)
	switch status {
	case domain.StatusCompleted:
		return color.GreenString(padded)
	case domain.StatusRunning:
		return color.CyanString(padded)
	case domain.StatusFailed:
		return color.RedString(padded)
	default:
		return padded
	}
}

func clockCell(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).Format("15:04:05")
}

// CountTestCases returns the total number of test cases across the given test files.
func (f *Formatter) CountTestCases(tests []domain.Test) (int, error) {
	var total int
	for _, test := range tests {
		cases, err := f.parser.FindTestCases(test)
		if err != nil {
			return 0, err
		}
		total += len(cases)
	}
	return total, nil
}

// normalizedPathForKey returns a path key for matching failures against
// scanned test files regardless of extension and case.
func normalizedPathForKey(path string) string {
	p := filepath.ToSlash(path)
	p = strings.TrimSuffix(p, ".php")
	return strings.ToLower(p)
}

// PrintTestList prints a list of test files, optionally with test cases.
// failedPaths is optional; if set, files in this set are marked with [F] in red (from last run).
func (f *Formatter) PrintTestList(tests []domain.Test, showTestCases bool, failedPaths map[string]struct{}) error {
	if showTestCases {
		// Display tree view with test cases
		color.Green("Found %d test file(s) with test cases:\n", len(tests))

		for i, test := range tests {
			testCases, err := f.parser.FindTestCases(test)
			if err != nil {
				color.Red("Error reading test file %s: %v", test.Path, err)
				continue
			}

			failMarker := ""
			if len(failedPaths) > 0 {
				if _, ok := failedPaths[normalizedPathForKey(test.FilePath)]; ok {
					failMarker = " " + color.RedString("[F]")
				}
			}

			// Print test file as root node
			isLastFile := i == len(tests)-1
			if isLastFile {
				color.Cyan("└── %s%s", test.FilePath, failMarker)
			} else {
				color.Cyan("├── %s%s", test.FilePath, failMarker)
			}

			// Print test cases as children
			if len(testCases) == 0 {
				var prefix string
				if isLastFile {
					prefix = "    └── "
				} else {
					prefix = "│   └── "
				}
				fmt.Printf("%s%s\n", prefix, color.RedString("(no test cases found)"))
			} else {
				for j, testCase := range testCases {
					isLastCase := j == len(testCases)-1

					var prefix string
					if isLastFile {
						if isLastCase {
							prefix = "    └── "
						} else {
							prefix = "    ├── "
						}
					} else {
						if isLastCase {
							prefix = "│   └── "
						} else {
							prefix = "│   ├── "
						}
					}

					fmt.Printf("%s%s\n", prefix, color.YellowString(testCase.Name))
				}
			}

			// Add spacing between files (except for the last one)
			if i < len(tests)-1 {
				fmt.Println()
			}
		}
	} else {
		// Display simple list of test files
		color.Green("Found %d test file(s):\n", len(tests))

		for i, test := range tests {
			failMarker := ""
			if len(failedPaths) > 0 {
				if _, ok := failedPaths[normalizedPathForKey(test.FilePath)]; ok {
					failMarker = " " + color.RedString("[F]")
				}
			}

			if i == len(tests)-1 {
				color.Cyan("└── %s%s", test.FilePath, failMarker)
			} else {
				color.Cyan("├── %s%s", test.FilePath, failMarker)
			}
		}
	}

	return nil
}
