package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/greenwinther/VibeWithMe/pkg/models"
	"github.com/google/uuid"
)

type MySQLDB struct {
	*gorm.DB
}

func NewMySQLDB(host, port, user, password, dbname string) (*MySQLDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLDB{DB: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomParticipant{},
		&models.Video{},
		&models.Message{},
	)
}

// Room operations

func (db *MySQLDB) CreateRoom(ctx context.Context, room *models.Room) error {
	return db.WithContext(ctx).Create(room).Error
}

func (db *MySQLDB) GetRoomByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (db *MySQLDB) ListPublicRooms(ctx context.Context) ([]*models.Room, error) {
	var rooms []*models.Room
	if err := db.WithContext(ctx).
		Where("is_public = ?", true).
		Order("last_active DESC").
		Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (db *MySQLDB) TouchRoom(ctx context.Context, id string) error {
	return db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", id).
		Update("last_active", time.Now()).Error
}

func (db *MySQLDB) SetRoomPlaying(ctx context.Context, id string, playing bool) error {
	return db.updateRoom(ctx, id, map[string]interface{}{
		"is_playing":  playing,
		"last_active": time.Now(),
	})
}

func (db *MySQLDB) SetRoomVideoTime(ctx context.Context, id string, t float64) error {
	return db.updateRoom(ctx, id, map[string]interface{}{
		"current_video_time": t,
		"last_active":        time.Now(),
	})
}

func (db *MySQLDB) SetRoomVideoPosition(ctx context.Context, id string, index int) error {
	return db.updateRoom(ctx, id, map[string]interface{}{
		"current_video_position": index,
		"current_video_time":     0,
		"last_active":            time.Now(),
	})
}

// updateRoom surfaces a missing room as record-not-found instead of an
// affected-zero-rows no-op, so socket callers can acknowledge the error.
func (db *MySQLDB) updateRoom(ctx context.Context, id string, fields map[string]interface{}) error {
	res := db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// User operations

func (db *MySQLDB) UpsertUser(ctx context.Context, id, name string) (*models.User, error) {
	var user models.User
	result := db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error == gorm.ErrRecordNotFound {
		user = models.User{ID: id, Name: name}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	user.Name = name
	if err := db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *MySQLDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *MySQLDB) UpdateUser(ctx context.Context, id string, name, avatarURL *string) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if name != nil {
		user.Name = *name
	}
	if avatarURL != nil {
		user.AvatarURL = avatarURL
	}
	if err := db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Participant operations

func (db *MySQLDB) UpsertParticipant(ctx context.Context, userID, roomID string) error {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return fmt.Errorf("invalid room id: %w", err)
	}
	p := models.RoomParticipant{UserID: userID, RoomID: rid}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&p).Error
}

func (db *MySQLDB) CountParticipants(ctx context.Context, roomID string) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ?", roomID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Playlist operations

// AddVideo assigns the next queue position and inserts the row in a single
// transaction. The room row is locked for the duration so two concurrent adds
// cannot read the same max position.
func (db *MySQLDB) AddVideo(ctx context.Context, video *models.Video) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", video.RoomID).Error; err != nil {
			return err
		}

		var max struct {
			Position int
		}
		if err := tx.Model(&models.Video{}).
			Select("COALESCE(MAX(position), -1) AS position").
			Where("room_id = ?", video.RoomID).
			Scan(&max).Error; err != nil {
			return err
		}

		video.Position = max.Position + 1
		if err := tx.Create(video).Error; err != nil {
			return err
		}

		return tx.Model(&models.Room{}).
			Where("id = ?", video.RoomID).
			Update("last_active", time.Now()).Error
	})
}

func (db *MySQLDB) GetPlaylist(ctx context.Context, roomID string) ([]*models.Video, error) {
	var videos []*models.Video
	if err := db.WithContext(ctx).
		Preload("AddedBy").
		Where("room_id = ?", roomID).
		Order("position ASC").
		Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// Message operations

func (db *MySQLDB) CreateMessage(ctx context.Context, msg *models.Message) error {
	return db.WithContext(ctx).Create(msg).Error
}

func (db *MySQLDB) GetMessages(ctx context.Context, roomID string) ([]*models.Message, error) {
	var msgs []*models.Message
	if err := db.WithContext(ctx).
		Preload("Sender").
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// Cleanup operations

func (db *MySQLDB) StaleRoomIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	if err := db.WithContext(ctx).Model(&models.Room{}).
		Where("last_active < ?", cutoff).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteRooms cascades away participants, videos and messages before removing
// the rooms themselves. Rooms already deleted by a concurrent sweep are
// tolerated: every statement is delete-if-exists.
func (db *MySQLDB) DeleteRooms(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id IN ?", ids).Delete(&models.Video{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id IN ?", ids).Delete(&models.RoomParticipant{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Room{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
