package race

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/text"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	"github.com/mcoot/typerace-go/internal/testutil"
)

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()

	texts := text.New(s.random)
	_ = texts.LoadPassages(map[model.Difficulty][]string{
		model.DifficultyMedium: {"the quick brown fox"},
	})

	s.controller = NewController(s.storage, texts, s.clock, s.random, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ControllerSuite) TearDownTest() {
	s.controller.Close()
}

func (s *ControllerSuite) join(connID, name string) *model.Race {
	race, err := s.controller.JoinOrCreate(s.ctx, model.ConnectionID(connID), name)
	s.Require().NoError(err)
	s.Require().NotNil(race)
	return race
}

// JoinOrCreate tests

func (s *ControllerSuite) TestFirstJoinCreatesRace() {
	s.random.QueueString("RACE0001")

	race := s.join("conn-1", "Alice")

	s.Equal(model.RaceID("RACE0001"), race.ID)
	s.Equal(model.RaceStatusWaiting, race.Status)
	s.Equal("the quick brown fox", race.Text)
	s.Equal(model.DifficultyMedium, race.Difficulty)
	s.Nil(race.Countdown)
	s.Require().Len(race.Players, 1)
	s.Equal(model.RacePlayer{ID: "conn-1", Name: "Alice"}, race.Players[0])
}

func (s *ControllerSuite) TestJoinIsPersisted() {
	race := s.join("conn-1", "Alice")

	stored, err := s.storage.GetRace(s.ctx, race.ID)
	s.Require().NoError(err)
	s.Len(stored.Players, 1)
}

func (s *ControllerSuite) TestSecondJoinReusesWaitingRace() {
	first := s.join("conn-1", "Alice")
	second := s.join("conn-2", "Bob")

	s.Equal(first.ID, second.ID)
	s.Require().Len(second.Players, 2)
	s.Equal(model.ConnectionID("conn-1"), second.Players[0].ID)
	s.Equal(model.ConnectionID("conn-2"), second.Players[1].ID)
	s.True(s.controller.ShouldStartCountdown(second))
}

func (s *ControllerSuite) TestJoinSkipsRacesThatAreNotWaiting() {
	s.join("conn-1", "Alice")
	first := s.join("conn-2", "Bob")
	s.Require().NoError(s.controller.StartCountdown(s.ctx, first.ID, newRecordingNotifier()))

	third := s.join("conn-3", "Carol")

	s.NotEqual(first.ID, third.ID)
	s.Len(third.Players, 1)
	s.False(s.controller.ShouldStartCountdown(third))
}

func (s *ControllerSuite) TestJoinTwiceFails() {
	s.join("conn-1", "Alice")

	_, err := s.controller.JoinOrCreate(s.ctx, "conn-1", "Alice again")
	s.ErrorIs(err, model.ErrAlreadyInRace)
}

func (s *ControllerSuite) TestJoinRetriesOnIDCollision() {
	s.random.QueueString("SAMEID22", "SAMEID22", "OTHERID3")
	s.join("conn-1", "Alice")
	s.Require().NoError(s.controller.StartCountdown(s.ctx, "SAMEID22", newRecordingNotifier()))

	race := s.join("conn-2", "Bob")
	s.Equal(model.RaceID("OTHERID3"), race.ID)
}

func (s *ControllerSuite) TestJoinWithoutTexts() {
	controller := NewController(memory.New(), text.New(s.random), s.clock, s.random, DefaultConfig(), testutil.NopLogger())

	_, err := controller.JoinOrCreate(s.ctx, "conn-1", "Alice")
	s.ErrorIs(err, model.ErrTextsNotLoaded)
}

func (s *ControllerSuite) TestJoinNormalizesName() {
	race := s.join("conn-1", "   ")
	s.Equal(DefaultDisplayName, race.Players[0].Name)

	race = s.join("conn-2", "  Bob  ")
	s.Equal("Bob", race.Players[1].Name)
}

func (s *ControllerSuite) TestJoinRejectsControlCharacters() {
	_, err := s.controller.JoinOrCreate(s.ctx, "conn-1", "bad\x00name")
	s.ErrorIs(err, model.ErrInvalidDisplayName)
}

func (s *ControllerSuite) TestNormalizeDisplayNameTruncates() {
	name, err := NormalizeDisplayName(strings.Repeat("é", MaxDisplayNameLength+10))
	s.Require().NoError(err)
	s.Equal(strings.Repeat("é", MaxDisplayNameLength), name)
}

// FindWaitingRace tests

func (s *ControllerSuite) TestFindWaitingRaceNone() {
	race, err := s.controller.FindWaitingRace(s.ctx)
	s.Require().NoError(err)
	s.Nil(race)
}

func (s *ControllerSuite) TestFindWaitingRaceReturnsFirst() {
	s.random.QueueString("FIRST222", "SECOND33")
	_, _ = s.controller.CreateRace(s.ctx)
	_, _ = s.controller.CreateRace(s.ctx)

	race, err := s.controller.FindWaitingRace(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(race)
	s.Equal(model.RaceID("FIRST222"), race.ID)
}

// ShouldStartCountdown tests

func (s *ControllerSuite) TestShouldStartCountdown() {
	s.False(s.controller.ShouldStartCountdown(nil))

	race := s.join("conn-1", "Alice")
	s.False(s.controller.ShouldStartCountdown(race))

	race = s.join("conn-2", "Bob")
	s.True(s.controller.ShouldStartCountdown(race))

	race.Status = model.RaceStatusRacing
	s.False(s.controller.ShouldStartCountdown(race))
}

func (s *ControllerSuite) TestMinPlayersIsConfigurable() {
	cfg := DefaultConfig()
	cfg.MinPlayers = 3
	controller := NewController(s.storage, text.New(s.random), s.clock, s.random, cfg, testutil.NopLogger())

	race := &model.Race{Status: model.RaceStatusWaiting, Players: make([]model.RacePlayer, 2)}
	s.False(controller.ShouldStartCountdown(race))

	race.Players = append(race.Players, model.RacePlayer{})
	s.True(controller.ShouldStartCountdown(race))
}

// Leave tests

func (s *ControllerSuite) TestLeaveRemovesPlayer() {
	s.join("conn-1", "Alice")
	race := s.join("conn-2", "Bob")

	updated, err := s.controller.Leave(s.ctx, race.ID, "conn-1", NopNotifier{})
	s.Require().NoError(err)
	s.Require().NotNil(updated)
	s.Require().Len(updated.Players, 1)
	s.Equal(model.ConnectionID("conn-2"), updated.Players[0].ID)

	stored, _ := s.storage.GetRace(s.ctx, race.ID)
	s.Len(stored.Players, 1)
}

func (s *ControllerSuite) TestLastLeaveDeletesRace() {
	race := s.join("conn-1", "Alice")

	updated, err := s.controller.Leave(s.ctx, race.ID, "conn-1", NopNotifier{})
	s.Require().NoError(err)
	s.Nil(updated)

	_, err = s.storage.GetRace(s.ctx, race.ID)
	s.ErrorIs(err, model.ErrRaceNotFound)
}

func (s *ControllerSuite) TestLeaveUnknownRace() {
	race, err := s.controller.Leave(s.ctx, "nonexistent", "conn-1", NopNotifier{})
	s.NoError(err)
	s.Nil(race)
}

func (s *ControllerSuite) TestLeaveUnknownPlayer() {
	joined := s.join("conn-1", "Alice")

	race, err := s.controller.Leave(s.ctx, joined.ID, "conn-9", NopNotifier{})
	s.NoError(err)
	s.Nil(race)

	stored, _ := s.storage.GetRace(s.ctx, joined.ID)
	s.Len(stored.Players, 1)
}

// UpdateProgress tests

func (s *ControllerSuite) TestUpdateProgressOverwrites() {
	s.join("conn-1", "Alice")
	race := s.join("conn-2", "Bob")

	updated, err := s.controller.UpdateProgress(s.ctx, race.ID, "conn-1", model.ProgressUpdate{Progress: 60, WPM: 80}, NopNotifier{})
	s.Require().NoError(err)
	s.Equal(60, updated.GetPlayer("conn-1").Progress)

	// No monotonicity: a lower value simply replaces the old one
	updated, err = s.controller.UpdateProgress(s.ctx, race.ID, "conn-1", model.ProgressUpdate{Progress: 30, WPM: 55}, NopNotifier{})
	s.Require().NoError(err)

	player := updated.GetPlayer("conn-1")
	s.Equal(30, player.Progress)
	s.Equal(55, player.WPM)
	s.False(player.Finished)
	s.Equal(model.RaceStatusWaiting, updated.Status)
}

func (s *ControllerSuite) TestUpdateProgressClamps() {
	race := s.join("conn-1", "Alice")

	updated, _ := s.controller.UpdateProgress(s.ctx, race.ID, "conn-1", model.ProgressUpdate{Progress: 250, WPM: -5}, NopNotifier{})
	s.Equal(100, updated.GetPlayer("conn-1").Progress)
	s.Equal(0, updated.GetPlayer("conn-1").WPM)

	updated, _ = s.controller.UpdateProgress(s.ctx, race.ID, "conn-1", model.ProgressUpdate{Progress: -1}, NopNotifier{})
	s.Equal(0, updated.GetPlayer("conn-1").Progress)
}

func (s *ControllerSuite) TestFirstFinisherEndsRace() {
	s.join("conn-1", "Alice")
	race := s.join("conn-2", "Bob")

	updated, err := s.controller.UpdateProgress(s.ctx, race.ID, "conn-2", model.ProgressUpdate{Progress: 100, WPM: 90, Finished: true}, NopNotifier{})
	s.Require().NoError(err)

	s.Equal(model.RaceStatusFinished, updated.Status)
	s.True(updated.GetPlayer("conn-2").Finished)
	s.False(updated.GetPlayer("conn-1").Finished)

	stored, _ := s.storage.GetRace(s.ctx, race.ID)
	s.Equal(model.RaceStatusFinished, stored.Status)
}

func (s *ControllerSuite) TestFinishedRaceIsNotReused() {
	race := s.join("conn-1", "Alice")
	_, _ = s.controller.UpdateProgress(s.ctx, race.ID, "conn-1", model.ProgressUpdate{Progress: 100, Finished: true}, NopNotifier{})

	next := s.join("conn-2", "Bob")
	s.NotEqual(race.ID, next.ID)
}

func (s *ControllerSuite) TestUpdateProgressUnknownRace() {
	race, err := s.controller.UpdateProgress(s.ctx, "nonexistent", "conn-1", model.ProgressUpdate{Progress: 10}, NopNotifier{})
	s.NoError(err)
	s.Nil(race)
}

func (s *ControllerSuite) TestUpdateProgressUnknownPlayer() {
	joined := s.join("conn-1", "Alice")

	race, err := s.controller.UpdateProgress(s.ctx, joined.ID, "conn-9", model.ProgressUpdate{Progress: 10}, NopNotifier{})
	s.NoError(err)
	s.Nil(race)
}

func (s *ControllerSuite) TestUpdateProgressBumpsUpdatedAt() {
	race := s.join("conn-1", "Alice")
	s.clock.Advance(5 * time.Second)

	updated, _ := s.controller.UpdateProgress(s.ctx, race.ID, "conn-1", model.ProgressUpdate{Progress: 10}, NopNotifier{})
	s.True(updated.UpdatedAt.After(race.UpdatedAt))
}
