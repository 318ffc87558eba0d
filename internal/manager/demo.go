package manager

import "github.com/scoutpluse/scoutsync/internal/model"

// DemoUsers returns the development user accounts, keyed by email.
func DemoUsers() map[string]model.User {
	return map[string]model.User{
		"admin@scouts.org": {
			ID:       "1",
			Name:     "admin",
			Email:    "admin@scouts.org",
			Password: "admin",
			Role:     model.RoleAdmin,
			Troop:    "Development",
			Phone:    "+1 (555) 123-4567",
			JoinDate: "2010-08-16",
			Bio:      "Dedicated to leading our scout troop and fostering growth in young minds.",
			Badges:   []string{"Leadership", "Camping", "Hiking", "First Aid", "Navigation"},
		},
		"leader@scouts.org": {
			ID:       "2",
			Name:     "Bashar",
			Email:    "leader@scouts.org",
			Password: "Bashar",
			Role:     model.RoleLeader,
			Troop:    "Ramita",
			Phone:    "+1 (555) 234-5678",
			JoinDate: "2021-03-15",
			Bio:      "Passionate about guiding scouts on their journey of discovery and adventure.",
			Badges:   []string{"Leadership", "Camping", "Hiking", "First Aid"},
		},
		"scout@scouts.org": {
			ID:       "3",
			Name:     "Scout Member",
			Email:    "scout@scouts.org",
			Password: "scout123",
			Role:     model.RoleMember,
			Troop:    "Troop 101",
			Phone:    "+1 (555) 345-6789",
			JoinDate: "2022-09-20",
			Bio:      "Excited to learn new skills and make lasting friendships through scouting.",
			Badges:   []string{"Camping", "Hiking", "First Aid"},
		},
		"guest@scouts.org": {
			ID:       "4",
			Name:     "Guest User",
			Email:    "guest@scouts.org",
			Password: "password",
			Role:     model.RoleGuest,
			Troop:    "Visitor",
			Phone:    "+1 (555) 999-0000",
			JoinDate: "2023-06-01",
			Bio:      "Exploring the world of scouting and learning about outdoor adventures.",
		},
	}
}

// DemoEvents returns the seed events used when neither the store nor the
// mirror has data.
func DemoEvents() []model.Event {
	return []model.Event{
		{
			ID:           "1",
			Title:        "Weekend Camping Trip",
			Description:  "Three-day camping adventure with hiking and campfire activities. Learn outdoor survival skills and enjoy nature.",
			Date:         "2025-01-20",
			Time:         "09:00",
			Location:     "Mountain View Campsite",
			Attendees:    []string{"1", "2"},
			MaxAttendees: 25,
			Category:     "ramita",
			Image:        "https://images.pexels.com/photos/1061640/pexels-photo-1061640.jpeg?auto=compress&cs=tinysrgb&w=1260&h=750&dpr=2",
			Status:       model.StatusUpcoming,
			Troop:        "Ramita",
			CreatedBy:    "1",
			CreatedAt:    "2025-01-15T10:00:00Z",
			UpdatedAt:    "2025-01-15T10:00:00Z",
		},
		{
			ID:           "2",
			Title:        "Community Service Project",
			Description:  "Help clean up the local park and plant new trees. Make a positive impact in our community.",
			Date:         "2025-01-25",
			Time:         "14:00",
			Location:     "Central Park",
			Attendees:    []string{"2", "3"},
			MaxAttendees: 20,
			Category:     "ma3lola",
			Image:        "https://images.pexels.com/photos/2885320/pexels-photo-2885320.jpeg?auto=compress&cs=tinysrgb&w=1260&h=750&dpr=2",
			Status:       model.StatusUpcoming,
			Troop:        "Ma3lola",
			CreatedBy:    "2",
			CreatedAt:    "2025-01-14T15:30:00Z",
			UpdatedAt:    "2025-01-14T15:30:00Z",
		},
		{
			ID:           "3",
			Title:        "First Aid Workshop",
			Description:  "Learn essential first aid skills. Certified instructors will guide you through practical exercises.",
			Date:         "2025-01-28",
			Time:         "10:00",
			Location:     "Scout Hall",
			Attendees:    []string{"1", "2", "3"},
			MaxAttendees: 15,
			Category:     "sergila",
			Image:        "https://images.pexels.com/photos/1170979/pexels-photo-1170979.jpeg?auto=compress&cs=tinysrgb&w=1260&h=750&dpr=2",
			Status:       model.StatusUpcoming,
			Troop:        "Sergila",
			CreatedBy:    "1",
			CreatedAt:    "2025-01-13T09:15:00Z",
			UpdatedAt:    "2025-01-13T09:15:00Z",
		},
		{
			ID:           "4",
			Title:        "Annual Scout Games",
			Description:  "Traditional games and competitions between troops. Show your skills and team spirit.",
			Date:         "2025-01-10",
			Time:         "09:00",
			Location:     "Sports Complex",
			Attendees:    []string{"1", "2", "3"},
			MaxAttendees: 50,
			Category:     "bousra",
			Image:        "https://images.pexels.com/photos/163403/box-sport-men-training-163403.jpeg?auto=compress&cs=tinysrgb&w=1260&h=750&dpr=2",
			Status:       model.StatusPast,
			Troop:        "Bousra",
			CreatedBy:    "1",
			CreatedAt:    "2025-01-05T12:00:00Z",
			UpdatedAt:    "2025-01-10T18:00:00Z",
		},
	}
}
