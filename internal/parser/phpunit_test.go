package parser

import (
	"strings"
	"testing"

	"tshard/internal/domain"
)

func TestParseTestCounts(t *testing.T) {
	p := NewPHPUnitParser()

	tests := []struct {
		name       string
		result     domain.TestResult
		wantPassed int
		wantFailed int
	}{
		{
			name: "all passing",
			result: domain.TestResult{
				Success: true,
				Output:  "PHPUnit 10.5.20\n\n.....\n\nOK (5 tests, 9 assertions)\n",
			},
			wantPassed: 5,
			wantFailed: 0,
		},
		{
			name: "failures and errors",
			result: domain.TestResult{
				Success: false,
				Output:  "FAILURES!\nTests: 7, Assertions: 12, Failures: 2, Errors: 1.\n",
			},
			wantPassed: 4,
			wantFailed: 3,
		},
		{
			name: "unparseable passing output falls back to file level",
			result: domain.TestResult{
				Success: true,
				Output:  "warning: something unrelated\n",
			},
			wantPassed: 1,
			wantFailed: 0,
		},
		{
			name: "unparseable failing output falls back to file level",
			result: domain.TestResult{
				Success: false,
				Output:  "segmentation fault\n",
			},
			wantPassed: 0,
			wantFailed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, failed := p.ParseTestCounts(tt.result)
			if passed != tt.wantPassed || failed != tt.wantFailed {
				t.Errorf("ParseTestCounts() = (%d, %d), want (%d, %d)",
					passed, failed, tt.wantPassed, tt.wantFailed)
			}
		})
	}
}

func TestParseFailure_SimpleAssertion(t *testing.T) {
	p := NewPHPUnitParser()

	output := `PHPUnit 10.5.20 by Sebastian Bergmann and contributors.

.F.                                                                 3 / 3 (100%)

Time: 00:01.234, Memory: 24.00 MB

There was 1 failure:

1) Tests\Feature\UserTest::testLogin
Failed asserting that false is true.

/project/tests/Feature/UserTest.php:42

FAILURES!
Tests: 3, Assertions: 5, Failures: 1.
`
	result := domain.TestResult{
		TestPath: "tests/Feature/UserTest.php",
		Success:  false,
		Output:   output,
	}

	failures := p.ParseFailure(result)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}

	f := failures[0]
	if f.TestName != "testLogin" {
		t.Errorf("TestName = %q, want testLogin", f.TestName)
	}
	if f.FilePath != "Tests/Feature/UserTest" {
		t.Errorf("FilePath = %q, want Tests/Feature/UserTest", f.FilePath)
	}
	if !strings.Contains(f.Message, "Failed asserting that false is true.") {
		t.Errorf("Message = %q, want assertion text", f.Message)
	}
}

func TestParseFailure_JSONDetailsAndTrace(t *testing.T) {
	p := NewPHPUnitParser()

	output := `There was 1 failure:

1) Tests\Feature\ApiTest::testPayload
Failed asserting that two JSON documents are equal.
{
    "status": "error",
    "code": 500
}

/project/vendor/phpunit/phpunit/src/Framework.php:100
/project/tests/Feature/ApiTest.php:57

FAILURES!
`
	result := domain.TestResult{
		TestPath: "tests/Feature/ApiTest.php",
		Success:  false,
		Output:   output,
	}

	failures := p.ParseFailure(result)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}

	f := failures[0]
	if !strings.Contains(f.ErrorDetails, `"status": "error"`) {
		t.Errorf("ErrorDetails missing JSON block: %q", f.ErrorDetails)
	}
	if len(f.StackTrace) != 2 {
		t.Fatalf("expected 2 stack trace lines, got %d: %v", len(f.StackTrace), f.StackTrace)
	}
	if f.File != "/project/tests/Feature/ApiTest.php" {
		t.Errorf("File = %q, want the test file from the trace", f.File)
	}
	if f.Line != 57 {
		t.Errorf("Line = %d, want 57", f.Line)
	}
}

func TestParseFailure_MultipleFailures(t *testing.T) {
	p := NewPHPUnitParser()

	output := `There were 2 failures:

1) Tests\Unit\CartTest::testAddItem
Failed asserting that 2 matches expected 3.

2) Tests\Unit\CartTest::testRemoveItem
Failed asserting that null is an instance of Item.

FAILURES!
`
	result := domain.TestResult{
		TestPath: "tests/Unit/CartTest.php",
		Success:  false,
		Output:   output,
	}

	failures := p.ParseFailure(result)
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].TestName != "testAddItem" || failures[1].TestName != "testRemoveItem" {
		t.Errorf("test names = %q, %q", failures[0].TestName, failures[1].TestName)
	}
	// The first failure's message must stop at the second header
	if strings.Contains(failures[0].Message, "testRemoveItem") {
		t.Errorf("first failure leaked into the second: %q", failures[0].Message)
	}
}

func TestParseFailure_NoMatches(t *testing.T) {
	p := NewPHPUnitParser()

	result := domain.TestResult{
		TestPath: "tests/Unit/CartTest.php",
		Success:  true,
		Output:   "OK (3 tests, 3 assertions)\n",
	}

	if failures := p.ParseFailure(result); len(failures) != 0 {
		t.Errorf("expected no failures, got %d", len(failures))
	}
}
