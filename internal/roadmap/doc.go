// Package roadmap holds the persisted planner document and its mutations.
//
// The document (roadmap-data.json) has this shape:
//
//	{
//	  "roadmaps": [
//	    {
//	      "id": "0b6c...",
//	      "name": "Launch",
//	      "timeScale": "weekly",
//	      "tasks": [
//	        {
//	          "id": "9f1e...",
//	          "name": "Write docs",
//	          "startDate": "2024-01-15",
//	          "endDate": "2024-01-19",
//	          "completed": false,
//	          "notes": "<p>draft</p>",
//	          "category": "docs"
//	        }
//	      ]
//	    }
//	  ],
//	  "pomodoroSessions": [],
//	  "activePomodoroTaskDetails": null
//	}
//
// # Invariants
//
//   - Task ids are unique within a roadmap; roadmap ids are unique within the document.
//   - Tasks are kept sorted by startDate after every add or import (stable).
//   - activePomodoroTaskDetails is a weak reference. Every deletion path clears it
//     when it points at the deleted roadmap or task.
//
// # File Format
//
// Encoded documents use 2-space indentation and a trailing newline.
package roadmap
