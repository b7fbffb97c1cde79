package emergency

import "testing"

func TestDeviceFeedFanOut(t *testing.T) {
	feed := NewDeviceFeed()
	var levels []int
	sub, _ := feed.SubscribeBattery(func(p int) { levels = append(levels, p) })
	var samples int
	motionSub, _ := feed.SubscribeMotion(func(Acceleration) { samples++ })

	if feed.PushBattery(80) != 1 || feed.PushMotion(Acceleration{Z: 9.8}) != 1 {
		t.Fatalf("expected one listener per stream")
	}
	if feed.Listeners() != 2 {
		t.Fatalf("expected 2 listeners, got %d", feed.Listeners())
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	motionSub.Unsubscribe()
	if feed.PushBattery(70) != 0 || feed.Listeners() != 0 {
		t.Fatalf("expected listeners removed")
	}
	if len(levels) != 1 || levels[0] != 80 || samples != 1 {
		t.Fatalf("unexpected deliveries: %v %d", levels, samples)
	}
}
