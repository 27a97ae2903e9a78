package plugin

import "testing"

func TestCanProcessNoFilterAdmitsEverything(t *testing.T) {
	if !CanProcess(nil, "Shot_Change", "") {
		t.Fatal("nil filter must admit everything")
	}
	if !CanProcess(MatchFilter{}, "Shot_Change", "sg_status_list") {
		t.Fatal("empty filter must admit everything")
	}
}

func TestCanProcessWildcardKeyAdmitsAnyEventType(t *testing.T) {
	f := MatchFilter{"*": nil}
	if !CanProcess(f, "Shot_Change", "") {
		t.Fatal("wildcard key with nil attrs must admit any event type/attribute")
	}
	if !CanProcess(f, "Task_Change", "sg_status_list") {
		t.Fatal("wildcard key with nil attrs must admit any event type/attribute")
	}
}

func TestCanProcessRejectsUnmatchedEventType(t *testing.T) {
	f := MatchFilter{"Shot_Change": nil}
	if CanProcess(f, "Task_Change", "") {
		t.Fatal("event type absent from filter must be rejected")
	}
}

func TestCanProcessNilAttributesAdmitAnyAttribute(t *testing.T) {
	f := MatchFilter{"Shot_Change": nil}
	if !CanProcess(f, "Shot_Change", "") {
		t.Fatal("nil attribute list must admit attribute-less events")
	}
	if !CanProcess(f, "Shot_Change", "sg_status_list") {
		t.Fatal("nil attribute list must admit any attribute")
	}
}

func TestCanProcessAttributeWildcardAdmitsAnyAttribute(t *testing.T) {
	f := MatchFilter{"Shot_Change": {"*"}}
	if !CanProcess(f, "Shot_Change", "sg_cut_in") {
		t.Fatal("attribute wildcard must admit any attribute")
	}
}

func TestCanProcessRequiresTruthyAttributeInList(t *testing.T) {
	f := MatchFilter{"Shot_Change": {"sg_status_list"}}
	if CanProcess(f, "Shot_Change", "") {
		t.Fatal("empty attribute name must be rejected when the filter names specific attributes")
	}
	if CanProcess(f, "Shot_Change", "sg_cut_in") {
		t.Fatal("attribute not in the list must be rejected")
	}
	if !CanProcess(f, "Shot_Change", "sg_status_list") {
		t.Fatal("attribute present in the list must be admitted")
	}
}
