// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := InMemory()
	if err != nil {
		t.Fatalf("InMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateSessionAndMessages(t *testing.T) {
	s := newTestStore(t)

	repo, err := s.CreateRepository("/tmp/repo", "repo", true)
	if err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}

	sess, err := s.CreateSession(repo.ID, "title")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Closed {
		t.Fatalf("new session should not be closed")
	}

	var lastID int64
	for i := 0; i < 5; i++ {
		id, seq, err := s.InsertMessage(sess.SessionID, []byte("hello"))
		if err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
		if seq != int64(i+1) {
			t.Fatalf("sequence_number = %d, want %d", seq, i+1)
		}
		// P5: message_id(i+1) > message_id(i)
		if id <= lastID {
			t.Fatalf("message_id not monotonic: %d <= %d", id, lastID)
		}
		lastID = id
	}

	msgs, err := s.GetMessages(sess.SessionID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("len(msgs) = %d, want 5", len(msgs))
	}
	for i, m := range msgs {
		if m.SequenceNumber != int64(i+1) {
			t.Fatalf("message %d has sequence_number %d", i, m.SequenceNumber)
		}
	}
}

func TestCloseSessionIdempotent(t *testing.T) {
	s := newTestStore(t)
	repo, _ := s.CreateRepository("/tmp/repo2", "repo2", true)
	sess, _ := s.CreateSession(repo.ID, "t")

	first, err := s.CloseSession(sess.SessionID)
	if err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if !first {
		t.Fatalf("first close should report true")
	}

	second, err := s.CloseSession(sess.SessionID)
	if err != nil {
		t.Fatalf("CloseSession (second): %v", err)
	}
	if second {
		t.Fatalf("second close should report false (already closed)")
	}

	got, err := s.GetSession(sess.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.Closed {
		t.Fatalf("session should be closed")
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	s := newTestStore(t)
	repo, _ := s.CreateRepository("/tmp/repo3", "repo3", true)
	sess, _ := s.CreateSession(repo.ID, "t")
	s.InsertMessage(sess.SessionID, []byte("x"))
	s.SetSessionSecret(sess.SessionID, []byte("enc"), []byte("nonce"))

	if err := s.DeleteSession(sess.SessionID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if _, err := s.GetSession(sess.SessionID); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	msgs, err := s.GetMessages(sess.SessionID)
	if err != nil {
		t.Fatalf("GetMessages after delete: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages should have cascaded away, got %d", len(msgs))
	}
}

func TestOutboxRoundTrip(t *testing.T) {
	s := newTestStore(t)
	repo, _ := s.CreateRepository("/tmp/repo4", "repo4", true)
	sess, _ := s.CreateSession(repo.ID, "t")

	for i := 0; i < 10; i++ {
		msgID, _, _ := s.InsertMessage(sess.SessionID, []byte("m"))
		seq, err := s.NextOutboxSequence(sess.SessionID)
		if err != nil {
			t.Fatalf("NextOutboxSequence: %v", err)
		}
		if err := s.InsertOutbox(sess.SessionID, seq, msgID); err != nil {
			t.Fatalf("InsertOutbox: %v", err)
		}
	}

	// Simulate a crash mid-batch: mark all "sent" without ack, then recover.
	pending, err := s.GetPendingOutbox(sess.SessionID, 50)
	if err != nil {
		t.Fatalf("GetPendingOutbox: %v", err)
	}
	seqs := make([]int64, len(pending))
	for i, e := range pending {
		seqs[i] = e.SequenceNumber
	}
	if err := s.MarkOutboxSent(sess.SessionID, seqs); err != nil {
		t.Fatalf("MarkOutboxSent: %v", err)
	}

	n, err := s.ResetSentToPending(sess.SessionID)
	if err != nil {
		t.Fatalf("ResetSentToPending: %v", err)
	}
	if n != 10 {
		t.Fatalf("ResetSentToPending reset %d rows, want 10", n)
	}

	again, err := s.GetPendingOutbox(sess.SessionID, 50)
	if err != nil {
		t.Fatalf("GetPendingOutbox (again): %v", err)
	}
	if len(again) != 10 {
		t.Fatalf("expected 10 pending rows after reset, got %d", len(again))
	}

	if err := s.MarkOutboxSent(sess.SessionID, seqs); err != nil {
		t.Fatalf("MarkOutboxSent: %v", err)
	}
	if err := s.MarkOutboxAcked(sess.SessionID, seqs); err != nil {
		t.Fatalf("MarkOutboxAcked: %v", err)
	}
}
