package mapper

import (
	"time"

	"aig-pipeline-be/internal/entity"
	"aig-pipeline-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RunMapper struct{}

func NewRunMapper() *RunMapper {
	return &RunMapper{}
}

func (m *RunMapper) ToEntity(r *model.Run) *entity.Run {
	if r == nil {
		return nil
	}
	var deletedAt *time.Time
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		updatedAt = &t
	}

	return &entity.Run{
		Id:                  r.Id,
		UserId:              r.UserId,
		ConstructName:       r.ConstructName,
		ConstructDefinition: r.ConstructDefinition,
		DimensionInfo:       r.DimensionInfo,
		Fingerprint:         r.Fingerprint,
		Mode:                r.Mode,
		Status:              r.Status,
		Phase:               r.Phase,
		RevisionCount:       r.RevisionCount,
		MaxRevisions:        r.MaxRevisions,
		Items:               []byte(r.Items),
		Error:               r.Error,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           updatedAt,
		FinishedAt:          r.FinishedAt,
		DeletedAt:           deletedAt,
		IsDeleted:           r.DeletedAt.Valid,
	}
}

func (m *RunMapper) ToModel(r *entity.Run) *model.Run {
	if r == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if r.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *r.DeletedAt, Valid: true}
	} else if r.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if r.UpdatedAt != nil {
		updatedAt = *r.UpdatedAt
	}

	return &model.Run{
		Id:                  r.Id,
		UserId:              r.UserId,
		ConstructName:       r.ConstructName,
		ConstructDefinition: r.ConstructDefinition,
		DimensionInfo:       r.DimensionInfo,
		Fingerprint:         r.Fingerprint,
		Mode:                r.Mode,
		Status:              r.Status,
		Phase:               r.Phase,
		RevisionCount:       r.RevisionCount,
		MaxRevisions:        r.MaxRevisions,
		Items:               datatypes.JSON(r.Items),
		Error:               r.Error,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           updatedAt,
		FinishedAt:          r.FinishedAt,
		DeletedAt:           deletedAt,
	}
}

func (m *RunMapper) ToEntities(runs []*model.Run) []*entity.Run {
	entities := make([]*entity.Run, len(runs))
	for i, r := range runs {
		entities[i] = m.ToEntity(r)
	}
	return entities
}

type RunRoundMapper struct{}

func NewRunRoundMapper() *RunRoundMapper {
	return &RunRoundMapper{}
}

func (m *RunRoundMapper) ToEntity(r *model.RunRound) *entity.RunRound {
	if r == nil {
		return nil
	}
	return &entity.RunRound{
		Id:        r.Id,
		RunId:     r.RunId,
		Round:     r.Round,
		Phase:     r.Phase,
		Items:     []byte(r.Items),
		CreatedAt: r.CreatedAt,
	}
}

func (m *RunRoundMapper) ToModel(r *entity.RunRound) *model.RunRound {
	if r == nil {
		return nil
	}
	return &model.RunRound{
		Id:        r.Id,
		RunId:     r.RunId,
		Round:     r.Round,
		Phase:     r.Phase,
		Items:     datatypes.JSON(r.Items),
		CreatedAt: r.CreatedAt,
	}
}

func (m *RunRoundMapper) ToEntities(rounds []*model.RunRound) []*entity.RunRound {
	entities := make([]*entity.RunRound, len(rounds))
	for i, r := range rounds {
		entities[i] = m.ToEntity(r)
	}
	return entities
}

type RunReviewMapper struct{}

func NewRunReviewMapper() *RunReviewMapper {
	return &RunReviewMapper{}
}

func (m *RunReviewMapper) ToEntity(r *model.RunReview) *entity.RunReview {
	if r == nil {
		return nil
	}
	return &entity.RunReview{
		Id:        r.Id,
		RunId:     r.RunId,
		Round:     r.Round,
		Ratings:   []byte(r.Ratings),
		Decisions: []byte(r.Decisions),
		Synthesis: r.Synthesis,
		CreatedAt: r.CreatedAt,
	}
}

func (m *RunReviewMapper) ToModel(r *entity.RunReview) *model.RunReview {
	if r == nil {
		return nil
	}
	return &model.RunReview{
		Id:        r.Id,
		RunId:     r.RunId,
		Round:     r.Round,
		Ratings:   datatypes.JSON(r.Ratings),
		Decisions: datatypes.JSON(r.Decisions),
		Synthesis: r.Synthesis,
		CreatedAt: r.CreatedAt,
	}
}

func (m *RunReviewMapper) ToEntities(reviews []*model.RunReview) []*entity.RunReview {
	entities := make([]*entity.RunReview, len(reviews))
	for i, r := range reviews {
		entities[i] = m.ToEntity(r)
	}
	return entities
}

type RunFeedbackMapper struct{}

func NewRunFeedbackMapper() *RunFeedbackMapper {
	return &RunFeedbackMapper{}
}

func (m *RunFeedbackMapper) ToEntity(f *model.RunFeedback) *entity.RunFeedback {
	if f == nil {
		return nil
	}
	return &entity.RunFeedback{
		Id:        f.Id,
		RunId:     f.RunId,
		Round:     f.Round,
		Source:    f.Source,
		Text:      f.Text,
		Decision:  f.Decision,
		CreatedAt: f.CreatedAt,
	}
}

func (m *RunFeedbackMapper) ToModel(f *entity.RunFeedback) *model.RunFeedback {
	if f == nil {
		return nil
	}
	return &model.RunFeedback{
		Id:        f.Id,
		RunId:     f.RunId,
		Round:     f.Round,
		Source:    f.Source,
		Text:      f.Text,
		Decision:  f.Decision,
		CreatedAt: f.CreatedAt,
	}
}

func (m *RunFeedbackMapper) ToEntities(items []*model.RunFeedback) []*entity.RunFeedback {
	entities := make([]*entity.RunFeedback, len(items))
	for i, f := range items {
		entities[i] = m.ToEntity(f)
	}
	return entities
}

type ResearchCacheMapper struct{}

func NewResearchCacheMapper() *ResearchCacheMapper {
	return &ResearchCacheMapper{}
}

func (m *ResearchCacheMapper) ToEntity(r *model.ResearchCache) *entity.ResearchCache {
	if r == nil {
		return nil
	}
	return &entity.ResearchCache{
		Id:          r.Id,
		Fingerprint: r.Fingerprint,
		RunId:       r.RunId,
		Summary:     r.Summary,
		CreatedAt:   r.CreatedAt,
	}
}

func (m *ResearchCacheMapper) ToModel(r *entity.ResearchCache) *model.ResearchCache {
	if r == nil {
		return nil
	}
	return &model.ResearchCache{
		Id:          r.Id,
		Fingerprint: r.Fingerprint,
		RunId:       r.RunId,
		Summary:     r.Summary,
		CreatedAt:   r.CreatedAt,
	}
}
