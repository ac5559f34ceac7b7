package contextblock

import (
	"strings"
	"testing"
)

type fixedBudget struct {
	system, project, task, history, knowledge int
}

func (b fixedBudget) SystemBudget() int    { return b.system }
func (b fixedBudget) ProjectBudget() int   { return b.project }
func (b fixedBudget) TaskBudget() int      { return b.task }
func (b fixedBudget) HistoryBudget() int   { return b.history }
func (b fixedBudget) KnowledgeBudget() int { return b.knowledge }

func TestAssembleRendersAllFiveBlocksWithDelimiters(t *testing.T) {
	a := New(fixedBudget{system: 50, project: 50, task: 50, history: 50, knowledge: 50}, WhitespaceTokenizer{})
	out, err := a.Assemble(Request{
		SystemPrompt: "You are a helpful assistant.",
		ProjectDocs:  "This project does X.",
		TaskDocs:     "Finish the report.",
		History:      []Turn{{Role: "user", Content: "hi"}},
		Knowledge:    []KnowledgeItem{{Content: "fact one", Source: "mem-1", Confidence: 0.9}},
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	for _, tag := range []string{"<system>", "</system>", "<project>", "</project>", "<task>", "</task>", "<history>", "</history>", "<knowledge>", "</knowledge>"} {
		if !strings.Contains(out.Prompt, tag) {
			t.Fatalf("expected prompt to contain %s, got:\n%s", tag, out.Prompt)
		}
	}
	if !strings.Contains(out.Prompt, "not instructions") {
		t.Fatal("expected untrusted-data notice in system block")
	}
}

func TestAssembleFailsWhenSystemBlockExceedsBudget(t *testing.T) {
	a := New(fixedBudget{system: 1}, WhitespaceTokenizer{})
	_, err := a.Assemble(Request{SystemPrompt: "this is way more than one token of content by far"})
	if err == nil {
		t.Fatal("expected error when system block exceeds its budget")
	}
}

func TestWaterfallFlowsUnusedSystemHeadroomToProject(t *testing.T) {
	a := New(fixedBudget{system: 100, project: 1, task: 0, history: 0, knowledge: 0}, WhitespaceTokenizer{})
	longProject := strings.Repeat("word ", 40) + "."
	out, err := a.Assemble(Request{SystemPrompt: "short.", ProjectDocs: longProject})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if out.TokensUsed["project"] == 0 {
		t.Fatal("expected project block to use headroom flowed down from the underused system budget")
	}
}

func TestHistoryKeepsRecentVerbatimAndSummarizesOlder(t *testing.T) {
	a := New(fixedBudget{system: 100, project: 0, task: 0, history: 100, knowledge: 0}, WhitespaceTokenizer{})
	var turns []Turn
	for i := 0; i < 8; i++ {
		turns = append(turns, Turn{Role: "user", Content: "turn content here"})
	}
	out, err := a.Assemble(Request{SystemPrompt: "ok.", History: turns})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !strings.Contains(out.Prompt, "summary of") {
		t.Fatal("expected older turns to be folded into a summary paragraph")
	}
}

func TestKnowledgeRendersProvenanceAndDropsLowestRelevanceFirst(t *testing.T) {
	a := New(fixedBudget{system: 40, project: 0, task: 0, history: 0, knowledge: 6}, WhitespaceTokenizer{})
	items := []KnowledgeItem{
		{Content: "high relevance fact", Source: "mem-1", Confidence: 0.95},
		{Content: "low relevance fact that is much longer and will get dropped first", Source: "mem-2", Confidence: 0.4},
	}
	out, err := a.Assemble(Request{SystemPrompt: "ok.", Knowledge: items})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !strings.Contains(out.Prompt, "mem-1") {
		t.Fatal("expected highest-relevance item to survive budgeting")
	}
	if strings.Contains(out.Prompt, "mem-2") {
		t.Fatal("expected lowest-relevance item to be dropped under a tight budget")
	}
}
