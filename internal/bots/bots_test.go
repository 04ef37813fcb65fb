package bots

import (
	"math"
	"testing"
	"time"

	"digitdash/internal/analysis"
	"digitdash/internal/market"

	"github.com/shopspring/decimal"
)

// snapshotOf runs digits through a fresh engine and returns the last snapshot.
func snapshotOf(digits ...int) analysis.Snapshot {
	e := analysis.NewEngine("R_100", analysis.Options{Capacity: 100, Precision: 0})
	var snap analysis.Snapshot
	for _, d := range digits {
		_, snap = e.ProcessTick(decimal.NewFromInt(int64(100+d)), time.Now())
	}
	return snap
}

func repeat(d, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func activeBot(t *testing.T, kind Kind, p Params) *Bot {
	t.Helper()
	b, err := New(kind, p)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	b.SetActive(true)
	return b
}

// go test -v --run TestRegistryCoversAllKinds
func TestRegistryCoversAllKinds(t *testing.T) {
	for _, k := range AllKinds() {
		if _, ok := Lookup(k); !ok {
			t.Errorf("no factory for %s", k)
		}
		parsed, err := ParseKind(k.String())
		if err != nil || parsed != k {
			t.Errorf("round trip of %s failed: %v", k, err)
		}
	}
	if len(registry) != len(AllKinds()) {
		t.Errorf("registry has %d entries, expected %d", len(registry), len(AllKinds()))
	}
}

// go test -v --run TestParseKind
func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"Even/Odd":        KindEvenOdd,
		"over-under":      KindOverUnder,
		"matchesdiffers":  KindMatchesDiffers,
		" Rise Fall ":     KindRiseFall,
		"MATCHES_DIFFERS": KindMatchesDiffers,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseKind("martingale"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

// go test -v --run TestEvenOddSignal
func TestEvenOddSignal(t *testing.T) {
	b := activeBot(t, KindEvenOdd, Params{})

	if _, ok := b.Consume(snapshotOf(repeat(2, 19)...)); ok {
		t.Fatal("signal emitted below the minimum sample count")
	}

	snap := snapshotOf(repeat(2, 20)...)
	sig, ok := b.Consume(snap)
	if !ok {
		t.Fatal("expected a signal for an all-even window")
	}
	if sig.Action != ActionBuy || sig.Contract.Type != ContractEven {
		t.Errorf("unexpected signal: %+v", sig)
	}
	if sig.Bot != KindEvenOdd || sig.Symbol != "R_100" || sig.Sequence != snap.Sequence {
		t.Errorf("signal not stamped: %+v", sig)
	}
	if !sig.Stake.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected default stake 1, got %s", sig.Stake)
	}

	// Same tick again: at most one signal per sequence.
	if _, ok := b.Consume(snap); ok {
		t.Error("bot signalled twice for the same tick")
	}

	odd := snapshotOf(repeat(7, 20)...)
	odd.Sequence = snap.Sequence + 1
	if sig, ok := b.Consume(odd); !ok || sig.Action != ActionSell || sig.Contract.Type != ContractOdd {
		t.Errorf("expected odd sell, got %+v (%v)", sig, ok)
	}
}

// go test -v --run TestInactiveBotIsSilent
func TestInactiveBotIsSilent(t *testing.T) {
	b, _ := New(KindEvenOdd, Params{})
	if _, ok := b.Consume(snapshotOf(repeat(2, 30)...)); ok {
		t.Error("inactive bot emitted a signal")
	}
}

// go test -v --run TestSymbolFilter
func TestSymbolFilter(t *testing.T) {
	b := activeBot(t, KindEvenOdd, Params{Symbol: "R_50"})
	if _, ok := b.Consume(snapshotOf(repeat(2, 30)...)); ok {
		t.Error("bot bound to R_50 reacted to R_100")
	}
}

// go test -v --run TestOverUnderSignal
func TestOverUnderSignal(t *testing.T) {
	b := activeBot(t, KindOverUnder, Params{})

	over := snapshotOf(append(repeat(8, 15), repeat(1, 5)...)...)
	sig, ok := b.Consume(over)
	if !ok || sig.Contract.Type != ContractOver || sig.Contract.Barrier != 4 || sig.Action != ActionBuy {
		t.Fatalf("expected over 4, got %+v (%v)", sig, ok)
	}
	if math.Abs(sig.Confidence-0.75) > 1e-9 {
		t.Errorf("expected confidence 0.75, got %v", sig.Confidence)
	}

	b2 := activeBot(t, KindOverUnder, Params{})
	under := snapshotOf(append(repeat(0, 15), repeat(9, 5)...)...)
	sig, ok = b2.Consume(under)
	if !ok || sig.Contract.Type != ContractUnder || sig.Contract.Barrier != 5 || sig.Action != ActionSell {
		t.Fatalf("expected under 5, got %+v (%v)", sig, ok)
	}

	b3 := activeBot(t, KindOverUnder, Params{})
	balanced := snapshotOf(append(repeat(8, 10), repeat(1, 10)...)...)
	if _, ok := b3.Consume(balanced); ok {
		t.Error("balanced window should not signal")
	}
}

// go test -v --run TestMatchesDiffersSignal
func TestMatchesDiffersSignal(t *testing.T) {
	b := activeBot(t, KindMatchesDiffers, Params{})

	// 0..8 repeated, digit 9 never seen
	var digits []int
	for i := 0; i < 54; i++ {
		digits = append(digits, i%9)
	}
	sig, ok := b.Consume(snapshotOf(digits...))
	if !ok {
		t.Fatal("expected a differs signal")
	}
	if sig.Contract.Type != ContractDiffer || sig.Contract.Barrier != 9 {
		t.Errorf("expected DIGITDIFF 9, got %+v", sig.Contract)
	}
}

// go test -v --run TestRiseFallSignal
func TestRiseFallSignal(t *testing.T) {
	b := activeBot(t, KindRiseFall, Params{})

	sig, ok := b.Consume(snapshotOf(5, 5, 1, 2, 3, 4))
	if !ok || sig.Contract.Type != ContractRise || sig.Action != ActionBuy {
		t.Fatalf("expected CALL, got %+v (%v)", sig, ok)
	}

	b2 := activeBot(t, KindRiseFall, Params{})
	sig, ok = b2.Consume(snapshotOf(5, 5, 9, 6, 3, 1))
	if !ok || sig.Contract.Type != ContractFall || sig.Action != ActionSell {
		t.Fatalf("expected PUT, got %+v (%v)", sig, ok)
	}

	b3 := activeBot(t, KindRiseFall, Params{})
	if _, ok := b3.Consume(snapshotOf(5, 5, 1, 2, 1, 2)); ok {
		t.Error("choppy digits should not signal")
	}
}

// go test -v --run TestLossStreakCooldown
func TestLossStreakCooldown(t *testing.T) {
	b := activeBot(t, KindEvenOdd, Params{MaxConsecutiveLosses: 2, CooldownTicks: 3, LossPenalty: 0.25})
	snap := snapshotOf(repeat(2, 20)...)
	next := func() analysis.Snapshot {
		snap.Sequence++
		return snap
	}

	base, ok := b.Consume(next())
	if !ok {
		t.Fatal("expected initial signal")
	}

	b.RecordResult(false)
	penalized, ok := b.Consume(next())
	if !ok {
		t.Fatal("one loss should not pause the bot")
	}
	if math.Abs(penalized.Confidence-base.Confidence*0.75) > 1e-9 {
		t.Errorf("expected confidence %v, got %v", base.Confidence*0.75, penalized.Confidence)
	}

	b.RecordResult(false)
	if !b.State().Paused() {
		t.Fatalf("expected pause after 2 losses: %+v", b.State())
	}
	for i := 0; i < 3; i++ {
		if _, ok := b.Consume(next()); ok {
			t.Fatalf("signal during cooldown at tick %d", i)
		}
	}

	resumed, ok := b.Consume(next())
	if !ok {
		t.Fatal("expected signals to resume after cooldown")
	}
	if resumed.Confidence != base.Confidence {
		t.Errorf("expected full confidence after cooldown, got %v", resumed.Confidence)
	}

	st := b.State()
	if st.Losses != 2 || st.Wins != 0 || st.ConsecutiveLosses != 0 {
		t.Errorf("unexpected state: %+v", st)
	}

	b.RecordResult(true)
	if st := b.State(); st.Wins != 1 || st.ConsecutiveWins != 1 {
		t.Errorf("unexpected state after win: %+v", st)
	}

	b.Reset()
	if st := b.State(); st.Wins != 0 || st.Signals != 0 || !st.Active {
		t.Errorf("unexpected state after reset: %+v", st)
	}
}

// go test -v --run TestDefaultSetPausesOnLossStreak
func TestDefaultSetPausesOnLossStreak(t *testing.T) {
	set := NewDefaultSet()
	for _, k := range AllKinds() {
		b, ok := set.Get(k)
		if !ok {
			t.Fatalf("default set is missing %s", k)
		}
		if got := b.State().Params.MaxConsecutiveLosses; got != 3 {
			t.Errorf("%s: expected loss streak limit 3, got %d", k, got)
		}
	}

	b, _ := set.Get(KindEvenOdd)
	b.RecordResult(false)
	b.RecordResult(false)
	if b.State().Paused() {
		t.Fatal("two losses should not pause the bot")
	}
	b.RecordResult(false)
	st := b.State()
	if !st.Paused() || st.CooldownRemaining != 10 {
		t.Fatalf("expected 10 tick cooldown after 3 losses, got %+v", st)
	}

	never := activeBot(t, KindEvenOdd, Params{MaxConsecutiveLosses: -1})
	for i := 0; i < 5; i++ {
		never.RecordResult(false)
	}
	if st := never.State(); st.Paused() || st.ConsecutiveLosses != 5 {
		t.Errorf("negative limit should never pause: %+v", st)
	}
}

// go test -v --run TestContractWins
func TestContractWins(t *testing.T) {
	entry := market.Tick{Price: decimal.RequireFromString("100.50"), Digit: 0}
	exit := market.Tick{Price: decimal.RequireFromString("100.57"), Digit: 7}

	cases := []struct {
		c    Contract
		want bool
	}{
		{Contract{Type: ContractEven}, false},
		{Contract{Type: ContractOdd}, true},
		{Contract{Type: ContractOver, Barrier: 4}, true},
		{Contract{Type: ContractUnder, Barrier: 5}, false},
		{Contract{Type: ContractMatch, Barrier: 7}, true},
		{Contract{Type: ContractDiffer, Barrier: 7}, false},
		{Contract{Type: ContractRise}, true},
		{Contract{Type: ContractFall}, false},
	}
	for _, c := range cases {
		if got := c.c.Wins(entry, exit); got != c.want {
			t.Errorf("%s/%d: got %v, want %v", c.c.Type, c.c.Barrier, got, c.want)
		}
	}
}

// go test -v --run TestSetActivation
func TestSetActivation(t *testing.T) {
	set := NewDefaultSet()
	if got := set.ConsumeAll(snapshotOf(repeat(2, 60)...)); len(got) != 0 {
		t.Fatalf("inactive set produced %d signals", len(got))
	}

	if err := set.Activate("Even/Odd"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if err := set.Activate("over_under"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if err := set.Activate("unknown"); err == nil {
		t.Error("expected error for unknown bot")
	}

	signals := set.ConsumeAll(snapshotOf(repeat(2, 60)...))
	if len(signals) != 2 || signals[0].Bot != KindEvenOdd || signals[1].Bot != KindOverUnder {
		t.Fatalf("unexpected signals: %+v", signals)
	}

	if err := set.Deactivate("even_odd"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	states := set.States()
	if len(states) != 4 || states[0].Active || !states[1].Active {
		t.Errorf("unexpected states: %+v", states)
	}
}
