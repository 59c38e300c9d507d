package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/service/mocks"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNotifier_Handle(t *testing.T) {
	tests := []struct {
		name          string
		event         model.Event
		mockSetup     func(sender *mocks.MockMessageSender, repo *mocks.MockNotifierRepository)
		expectedError bool
		expectSend    bool
	}{
		{
			name:  "Completion messages the participant",
			event: model.Event{Kind: model.EventCompleted, HuntID: 7, ParticipantID: "12345"},
			mockSetup: func(sender *mocks.MockMessageSender, repo *mocks.MockNotifierRepository) {
				sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
					msg, ok := c.(tgbotapi.MessageConfig)
					return ok && msg.ChatID == 12345
				})).Return(tgbotapi.Message{}, nil).Once()
			},
			expectSend: true,
		},
		{
			name:       "Non-telegram participant is skipped",
			event:      model.Event{Kind: model.EventCompleted, HuntID: 7, ParticipantID: "web-alice"},
			mockSetup:  func(sender *mocks.MockMessageSender, repo *mocks.MockNotifierRepository) {},
			expectSend: false,
		},
		{
			name: "Award resolves the winner by address",
			event: model.Event{
				Kind:    model.EventNFTAwarded,
				HuntID:  7,
				Payload: map[string]any{"address": testAddress, "token_id": int64(3)},
			},
			mockSetup: func(sender *mocks.MockMessageSender, repo *mocks.MockNotifierRepository) {
				repo.On("RegistrationByAddress", mock.Anything, int64(7), testAddress).
					Return(&model.Registration{HuntID: 7, ParticipantID: "555", Address: testAddress}, nil)
				sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
					msg, ok := c.(tgbotapi.MessageConfig)
					return ok && msg.ChatID == 555
				})).Return(tgbotapi.Message{}, nil).Once()
			},
			expectSend: true,
		},
		{
			name: "Award for unknown address",
			event: model.Event{
				Kind:    model.EventNFTAwarded,
				HuntID:  7,
				Payload: map[string]any{"address": testAddress},
			},
			mockSetup: func(sender *mocks.MockMessageSender, repo *mocks.MockNotifierRepository) {
				repo.On("RegistrationByAddress", mock.Anything, int64(7), testAddress).Return(nil, errors.New("not found"))
			},
			expectedError: true,
		},
		{
			name:      "Other events are ignored",
			event:     model.Event{Kind: model.EventClueSolved, HuntID: 7, ParticipantID: "12345"},
			mockSetup: func(sender *mocks.MockMessageSender, repo *mocks.MockNotifierRepository) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mocks.MockMessageSender{}
			repo := &mocks.MockNotifierRepository{}
			tt.mockSetup(sender, repo)

			err := NewNotifier(sender, repo).Handle(context.Background(), tt.event)
			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if !tt.expectSend {
				sender.AssertNotCalled(t, "Send", mock.Anything)
			}
			sender.AssertExpectations(t)
			repo.AssertExpectations(t)
		})
	}
}

func TestNotifier_RunStopsWhenChannelCloses(t *testing.T) {
	sender := &mocks.MockMessageSender{}
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	events := make(chan model.Event, 1)
	events <- model.Event{Kind: model.EventCompleted, HuntID: 1, ParticipantID: "42"}
	close(events)

	done := make(chan struct{})
	go func() {
		NewNotifier(sender, &mocks.MockNotifierRepository{}).Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop")
	}
	sender.AssertExpectations(t)
}
