package service

import (
	"iter"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/pipeline"
)

// StreamFrames turns a streamed turn into transport frames. The final frame
// is held back until the turn ends so it can tell whether the reply was saved.
func StreamFrames(seq iter.Seq2[pipeline.StreamChunk, error]) iter.Seq[dto.StreamFrame] {
	return func(yield func(dto.StreamFrame) bool) {
		var final *dto.StreamFrame

		for chunk, err := range seq {
			if err != nil {
				if final != nil {
					if rag.IsKind(err, rag.KindPersistence) {
						final.Result.Saved = false
					}
					if !yield(*final) {
						return
					}
					final = nil
				}
				_, text := serverutils.StatusFor(err)
				if !yield(dto.StreamFrame{Type: dto.FrameError, Error: text}) {
					return
				}
				continue
			}

			if chunk.Final != nil {
				final = &dto.StreamFrame{Type: dto.FrameFinal, Result: ToSendMessageResponse(chunk.Final)}
				continue
			}
			if !yield(dto.StreamFrame{Type: dto.FrameChunk, Fragment: chunk.Fragment}) {
				return
			}
		}

		if final != nil {
			yield(*final)
		}
	}
}
